package middlewares_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rfsouza01/contacthub/internal/auth"
	"github.com/rfsouza01/contacthub/internal/domain/user"
	"github.com/rfsouza01/contacthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	byHash map[string]user.User
}

func (f *fakeResolver) FindUserByTokenHash(ctx context.Context, tokenHash string) (user.User, error) {
	u, ok := f.byHash[tokenHash]
	if !ok {
		return user.User{}, auth.ErrInvalidToken
	}

	return u, nil
}

func protectedRouter(mgr *auth.Manager, resolver *fakeResolver) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.NewAuthMiddleware(mgr, resolver).RequireAuth())
	r.GET("/whoami", func(ctx *gin.Context) {
		id, _ := middlewares.UserIDFromContext(ctx)
		u, _ := middlewares.UserFromContext(ctx)
		ctx.JSON(http.StatusOK, gin.H{"id": id, "email": u.Email})
	})

	return r
}

func TestRequireAuthResolvesToken(t *testing.T) {
	mgr := auth.NewManager("test-secret")

	raw, err := mgr.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	u := user.User{ID: uuid.NewString(), Email: "rita@example.com"}
	resolver := &fakeResolver{byHash: map[string]user.User{mgr.HashToken(raw): u}}

	r := protectedRouter(mgr, resolver)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}

func TestRequireAuthRejections(t *testing.T) {
	mgr := auth.NewManager("test-secret")

	raw, err := mgr.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	// nothing registered, so even a well formed token resolves to no user
	r := protectedRouter(mgr, &fakeResolver{byHash: map[string]user.User{}})

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing_header", header: ""},
		{name: "not_bearer", header: "Basic dXNlcjpwYXNz"},
		{name: "empty_token", header: "Bearer "},
		{name: "unknown_token", header: "Bearer " + raw},
		{name: "garbage_token", header: "Bearer not-a-real-token"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)

			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("got status %d, want 401, body=%s", w.Code, w.Body.String())
			}
		})
	}
}

// a token hashed under a different secret must not resolve
func TestRequireAuthSecretMismatch(t *testing.T) {
	issuer := auth.NewManager("secret-a")
	verifier := auth.NewManager("secret-b")

	raw, err := issuer.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	u := user.User{ID: uuid.NewString()}
	resolver := &fakeResolver{byHash: map[string]user.User{issuer.HashToken(raw): u}}

	r := protectedRouter(verifier, resolver)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", w.Code)
	}
}
