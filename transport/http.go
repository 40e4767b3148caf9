package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/services"
)

// Handler holds the transport dependencies.
type Handler struct {
	log            *slog.Logger
	auth           services.IAuthService
	chat           services.IChatService
	allowedOrigins []string
}

func New(log *slog.Logger, auth services.IAuthService, chat services.IChatService,
	allowedOrigins []string) *Handler {
	return &Handler{
		log:            log,
		auth:           auth,
		chat:           chat,
		allowedOrigins: allowedOrigins,
	}
}

// SetupRouter configures and returns the HTTP router.
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// REST API: the history pull is a request/response path independent of
	// the push channel.
	r.HandleFunc("/messages", h.GetMessages).Methods(http.MethodGet)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)

	// WebSocket push channel
	r.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)

	return r
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// GetMessages handles GET /messages, ordered oldest first. An optional
// since=RFC3339Nano parameter returns only strictly later messages, for
// clients refreshing an existing snapshot.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var list []domain.Message
	var err error

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, parseErr := time.Parse(time.RFC3339Nano, raw)
		if parseErr != nil {
			h.writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		list, err = h.chat.Since(ctx, since)
	} else {
		list, err = h.chat.History(ctx)
	}

	if err != nil {
		h.log.Error("History fetch failed", "error", err)
		h.writeError(w, errors.MapToHTTPStatus(err), "could not fetch messages")
		return
	}
	h.writeJSON(w, http.StatusOK, toWireMessages(list))
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, authResponse{
		Message:  "Login successful",
		Username: req.Username,
		Token:    string(token),
	})
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, err := h.auth.Register(req.Username, req.Password)
	if err != nil {
		h.writeError(w, errors.MapToHTTPStatus(err), err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, authResponse{
		Message:  "User created and logged in",
		Username: req.Username,
		Token:    string(token),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("Response encoding failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Message: message})
}
