package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/transport"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"CHAT_SERVER_URL,default=http://localhost:5000"`
	Username  string `env:"CHAT_USERNAME,required=true"`
	Password  string `env:"CHAT_PASSWORD,required=true"`
	Register  bool   `env:"CHAT_REGISTER,default=false"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run drives the whole client lifecycle: authenticate over REST, open the
// push channel, pull history, then relay between stdin and the socket while
// the timeline reconciles optimistic entries with server echoes.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Authenticate: the push channel itself carries only the display name.
	if err := authenticate(config); err != nil {
		return exitRuntime, err
	}
	color.Green.Printf(">>> Authenticated as %s\n", config.Username)

	// 2. Open the push channel and join.
	wsURL := strings.Replace(config.ServerURL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", wsURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	if err := conn.WriteJSON(transport.ClientFrame{Type: "join", Username: config.Username}); err != nil {
		return exitRuntime, fmt.Errorf("join failed: %w", err)
	}

	timeline := client.NewTimeline(domain.Identity(config.Username))

	// 3. Pull history out of band from the push channel. Broadcasts racing
	// this fetch are absorbed by the timeline's id dedup.
	history, err := fetchHistory(config.ServerURL)
	if err != nil {
		return exitRuntime, err
	}
	timeline.MergeHistory(history)
	renderHistory(timeline)

	// 4. Reception loop.
	received := make(chan transport.ServerFrame)
	readErr := make(chan error, 1)
	go func() {
		for {
			var frame transport.ServerFrame
			if err := conn.ReadJSON(&frame); err != nil {
				readErr <- err
				return
			}
			received <- frame
		}
	}()

	// 5. Input loop.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	color.Gray.Println("Type a message and press enter (Ctrl+C to quit)")
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("stream error: %w", err)
		case frame := <-received:
			handleFrame(config.Username, timeline, frame)
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			// Optimistic display before the server confirms.
			timeline.AppendLocal(line)
			color.Cyan.Printf("(you, sending) %s\n", line)
			if err := conn.WriteJSON(transport.ClientFrame{Type: "send", Content: line}); err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

func handleFrame(self string, timeline *client.Timeline, frame transport.ServerFrame) {
	switch frame.Type {
	case "welcome":
		color.Green.Println(frame.Text)
	case "error":
		color.Red.Printf("!!! %s\n", frame.Reason)
	case "message":
		if frame.Message == nil {
			return
		}
		message, err := toDomainMessage(*frame.Message)
		if err != nil {
			return
		}
		if !timeline.Apply(message) {
			// Duplicate broadcast of an id already displayed.
			return
		}
		stamp := message.CreatedAt.Local().Format(time.TimeOnly)
		if frame.Message.Author == self {
			color.Cyan.Printf("[%s] %s: %s\n", stamp, message.Author, message.Content)
		} else {
			color.White.Printf("[%s] %s: %s\n", stamp, message.Author, message.Content)
		}
	}
}

func toDomainMessage(wire transport.WireMessage) (domain.Message, error) {
	id, err := uuid.Parse(wire.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		Author:    domain.Identity(wire.Author),
		Content:   wire.Content,
		CreatedAt: wire.CreatedAt,
	}, nil
}

// authenticate registers or logs in over the REST surface.
func authenticate(config Config) error {
	route := "/login"
	if config.Register {
		route = "/register"
	}

	body, err := json.Marshal(map[string]string{
		"username": config.Username,
		"password": config.Password,
	})
	if err != nil {
		return err
	}

	resp, err := http.Post(config.ServerURL+route, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var reply struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&reply)
		return fmt.Errorf("auth refused: %s", reply.Message)
	}
	return nil
}

func fetchHistory(serverURL string) ([]domain.Message, error) {
	resp, err := http.Get(serverURL + "/messages")
	if err != nil {
		return nil, fmt.Errorf("history fetch failed: %w", err)
	}
	defer resp.Body.Close()

	var wire []transport.WireMessage
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("history decode failed: %w", err)
	}

	messages := make([]domain.Message, 0, len(wire))
	for _, w := range wire {
		message, err := toDomainMessage(w)
		if err != nil {
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func renderHistory(timeline *client.Timeline) {
	entries := timeline.Snapshot()
	if len(entries) == 0 {
		color.Gray.Println("No history yet")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Author", "Message"})
	for _, entry := range entries {
		table.Append([]string{
			entry.Message.CreatedAt.Local().Format(time.TimeOnly),
			string(entry.Message.Author),
			entry.Message.Content,
		})
	}
	table.Render()
}
