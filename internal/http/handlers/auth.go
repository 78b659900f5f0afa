package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rfsouza01/contacthub/internal/auth"
	"github.com/rfsouza01/contacthub/internal/config"
	"github.com/rfsouza01/contacthub/internal/domain/user"
	"github.com/rfsouza01/contacthub/internal/http/middlewares"
	"github.com/rfsouza01/contacthub/internal/repo/postgres"
	"github.com/rfsouza01/contacthub/internal/security"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, name, email, passwordHash string) (user.User, error)
	ExistsEmail(ctx context.Context, email string) (bool, error)
}

type TokenStore interface {
	Create(ctx context.Context, row postgres.APITokenRow) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	tokens     TokenStore
	mgr        *auth.Manager
}

func NewAuthHandler(users UserReader, userWriter UserWriter, tokens TokenStore, mgr *auth.Manager) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		tokens:     tokens,
		mgr:        mgr,
	}
}

type RegisterRequest struct {
	Name                 string `json:"name" binding:"required,min=3,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=6,max=255"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	// pre-check for a friendly error; the unique index still backstops the
	// race between this check and the insert
	taken, err := h.userWriter.ExistsEmail(cctx, req.Email)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	if taken {
		RespondError(ctx, http.StatusBadRequest, "email_taken", "Email is already in use.", gin.H{"field": "email"})
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.userWriter.Create(cctx, req.Name, req.Email, hash)

	if err != nil {
		if err == postgres.ErrEmailAlreadyUsed {
			RespondError(ctx, http.StatusBadRequest, "email_taken", "Email is already in use.", gin.H{"field": "email"})
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	token, err := h.issueToken(cctx, u.ID)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"data": gin.H{
			"user":  u,
			"token": token,
		},
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	// unknown email and wrong password answer identically
	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	token, err := h.issueToken(cctx, foundUser.ID)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"user":  foundUser,
			"token": token,
		},
	})
}

// Logout revokes every live token the caller holds, across all devices.
// Succeeds even when nothing was left to revoke.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.tokens.RevokeAllForUser(cctx, userID)

	if err != nil {
		slog.Default().ErrorContext(ctx.Request.Context(), "logout failed", "err", err, "user_id", userID)
		RespondInternal(ctx, "Could not log out")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": u})
}

// issueToken mints an opaque token and persists its hash. Several live
// tokens per user are fine (one per device).
func (h *AuthHandler) issueToken(ctx context.Context, userID string) (string, error) {
	raw, err := h.mgr.GenerateToken()

	if err != nil {
		return "", err
	}

	row := postgres.APITokenRow{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: h.mgr.HashToken(raw),
		CreatedAt: time.Now().UTC(),
	}

	err = h.tokens.Create(ctx, row)

	if err != nil {
		return "", err
	}

	return raw, nil
}
