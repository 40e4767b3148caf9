package services

import (
	stderrors "errors"
	"time"

	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/repositories"
)

type IAuthService interface {
	Login(username, password string) (Token, error)
	Register(username, password string) (Token, error)
}

type Token string

type AuthService struct {
	userRepository    repositories.IUserRepository
	authTokenDuration time.Duration
}

func NewAuthService(repo repositories.IUserRepository, authTokenDuration time.Duration) IAuthService {
	return &AuthService{userRepository: repo, authTokenDuration: authTokenDuration}
}

// Register validates the credential pair, hashes the password and persists
// the user. Each failure carries a specific reason: a password under 8
// characters is ErrWeakPassword, a duplicate username is ErrUsernameTaken.
func (s *AuthService) Register(username, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Password: password,
	}

	// Validation runs before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", err
	}

	// Hashing happens in the service layer to keep the repository unaware
	// of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}

	userID, err := s.userRepository.CreateUser(username, hashedPassword)
	if err != nil {
		return "", err // Propagates ErrUsernameTaken when the name is held
	}

	token, err := auth.GenerateToken(userID, username, s.authTokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// Login verifies credentials and issues a session token. An unknown
// username surfaces as ErrUserNotFound, a hash mismatch as
// ErrInvalidCredentials. Neither path is ever silently retried.
func (s *AuthService) Login(username, password string) (Token, error) {
	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return "", errors.ErrUserNotFound
		}
		return "", err
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, username, s.authTokenDuration)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
