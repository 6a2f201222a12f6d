package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ordokr/LMS-sub004/internal/crypto"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

// OperatorDirectory возвращает argon2id-хеш пароля оператора
type OperatorDirectory interface {
	PasswordHash(username string) (string, bool)
}

// OperatorMap каталог операторов username -> хеш пароля
type OperatorMap map[string]string

// PasswordHash реализует OperatorDirectory
func (m OperatorMap) PasswordHash(username string) (string, bool) {
	hash, ok := m[username]
	return hash, ok
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	responder
	operators OperatorDirectory
	jwtConfig JWTConfig
	// dummyHash проверяется для неизвестных имен, чтобы время ответа не выдавало их
	dummyHash string
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, operators OperatorDirectory, jwtConfig JWTConfig) *AuthHandler {
	dummy, err := crypto.HashPassword("lmssync-unknown-operator")
	if err != nil {
		logger.Warn("failed to prepare dummy password hash", slog.Any("error", err))
	}
	return &AuthHandler{
		responder: responder{logger: logger},
		operators: operators,
		jwtConfig: jwtConfig,
		dummyHash: dummy,
	}
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid login request", slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, known := h.operators.PasswordHash(req.Username)
	if !known {
		hash = h.dummyHash
	}

	err := crypto.VerifyPassword(req.Password, hash)
	if !known || err != nil {
		if err != nil && !errors.Is(err, crypto.ErrPasswordMismatch) {
			h.logger.ErrorContext(ctx, "stored password hash is unusable",
				slog.String("username", req.Username), slog.Any("error", err))
		}
		h.logger.WarnContext(ctx, "login failed", slog.String("username", req.Username))
		h.sendError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, expiresIn, err := GenerateAccessToken(h.jwtConfig, req.Username)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "operator logged in", slog.String("username", req.Username))

	h.sendJSON(w, api.TokenResponse{AccessToken: token, ExpiresIn: expiresIn}, http.StatusOK)
}
