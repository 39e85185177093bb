package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"holdem-core/internal/gameerr"
	"holdem-core/internal/storage/postgres"
)

// sessionTTL is the default session lifetime; sessions are opaque tokens
// stored server-side rather than self-contained JWTs, so clock skew on
// the client side never matters.
const sessionTTL = 24 * time.Hour

func sessionExpiry() time.Time { return time.Now().Add(sessionTTL) }

// AuthServer implements the register/login surface spec §6.1 names,
// grounded on the reference auth package's bcrypt-then-session-row
// pattern. It is entirely separate from the game core: the core only ever
// depends on wallet.Bridge, never on UserStore.
type AuthServer struct {
	store  postgres.UserStore
	pepper string
}

func NewAuthServer(store postgres.UserStore, pepper string) *AuthServer {
	return &AuthServer{store: store, pepper: pepper}
}

func (a *AuthServer) Register(router gin.IRouter) {
	router.POST("/api/auth/register", a.register)
	router.POST("/api/auth/login", a.login)
}

func (a *AuthServer) register(c *gin.Context) {
	var req struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"type": "error", "message": "invalid_message"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password+a.pepper), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"type": "error", "message": "internal_error"})
		return
	}

	if _, err := a.store.GetUserByUsername(c.Request.Context(), req.Username); err == nil {
		c.JSON(http.StatusConflict, gin.H{"type": "error", "message": gameerr.ToWireMessage(gameerr.NewUserError(gameerr.AlreadyJoined, req.Username))})
		return
	}

	if _, err := a.store.CreateUser(c.Request.Context(), req.Username, req.DisplayName, string(hash)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"type": "error", "message": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "ok"})
}

func (a *AuthServer) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"type": "error", "message": "invalid_message"})
		return
	}

	user, err := a.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"type": "error", "message": "unauthorized"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password+a.pepper)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"type": "error", "message": "unauthorized"})
		return
	}

	token := uuid.NewString()
	session := postgres.Session{Token: token, UserID: user.ID, ExpiresAt: sessionExpiry()}
	if err := a.store.CreateSession(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"type": "error", "message": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": "ok", "token": token, "expires_at": session.ExpiresAt})
}
