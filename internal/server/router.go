package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/articles"
	"github.com/MarcoPoloResearchLab/inkwell/internal/auth"
	"github.com/MarcoPoloResearchLab/inkwell/internal/comments"
	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"github.com/MarcoPoloResearchLab/inkwell/internal/likes"
	"github.com/MarcoPoloResearchLab/inkwell/internal/metadata"
	"github.com/MarcoPoloResearchLab/inkwell/internal/metrics"
	"github.com/MarcoPoloResearchLab/inkwell/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	userIDContextKey  = "inkwell_user_id"
	claimsContextKey  = "inkwell_claims"
	defaultCookieName = "jwt"
	accessTokenQuery  = "access_token"
)

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingAccounts      = errors.New("accounts dependency required")
	errMissingArticles      = errors.New("article store dependency required")
	errMissingComments      = errors.New("comment store dependency required")
	errMissingLikes         = errors.New("like store dependency required")
	errMissingViews         = errors.New("metadata aggregator dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues, validates and revokes access tokens.
type TokenManager interface {
	IssueToken(ctx context.Context, subject auth.Subject) (string, int64, error)
	ValidateToken(token string) (auth.Claims, error)
	Revoke(claims auth.Claims)
}

// Dependencies wires the HTTP adapter to the engine and its supporting services.
type Dependencies struct {
	TokenManager      TokenManager
	Accounts          *users.Service
	Articles          *articles.Store
	Comments          *comments.Store
	Likes             *likes.Store
	Views             *metadata.Aggregator
	Realtime          *RealtimeDispatcher
	Metrics           *metrics.Recorder
	AllowedOrigins    []string
	CookieName        string
	SecureCookies     bool
	HeartbeatInterval time.Duration
	Clock             func() time.Time
	Logger            *zap.Logger
}

// NewHTTPHandler builds the gin router serving the inkwell API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.TokenManager == nil:
		return nil, errMissingTokenManager
	case deps.Accounts == nil:
		return nil, errMissingAccounts
	case deps.Articles == nil:
		return nil, errMissingArticles
	case deps.Comments == nil:
		return nil, errMissingComments
	case deps.Likes == nil:
		return nil, errMissingLikes
	case deps.Views == nil:
		return nil, errMissingViews
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}
	cookieName := strings.TrimSpace(deps.CookieName)
	if cookieName == "" {
		cookieName = defaultCookieName
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))
	router.Use(requestMetrics(recorder))

	handler := &httpHandler{
		tokens:        deps.TokenManager,
		accounts:      deps.Accounts,
		articles:      deps.Articles,
		comments:      deps.Comments,
		likes:         deps.Likes,
		views:         deps.Views,
		realtime:      realtime,
		metrics:       recorder,
		cookieName:    cookieName,
		secureCookies: deps.SecureCookies,
		heartbeat:     heartbeat,
		clock:         engine.ClockOrDefault(deps.Clock),
		logger:        logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(recorder.Handler()))

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)

	router.GET("/articles", handler.handleListArticles)
	router.GET("/articles/:id", handler.identifyViewer, handler.handleGetArticle)
	router.GET("/comments", handler.handleListComments)
	router.GET("/comments/:id", handler.handleGetComment)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/auth/logout", handler.handleLogout)
	protected.GET("/users/me", handler.handleGetProfile)
	protected.PATCH("/users/me", handler.handleUpdateProfile)
	protected.POST("/articles", handler.handleCreateArticle)
	protected.PATCH("/articles/:id", handler.handleUpdateArticle)
	protected.DELETE("/articles/:id", handler.handleDeleteArticle)
	protected.GET("/articles/:id/edit-histories", handler.handleArticleHistory)
	protected.GET("/articles/:id/draft", handler.handleArticleDraft)
	protected.POST("/comments", handler.handleCreateComment)
	protected.DELETE("/comments/:id", handler.handleDeleteComment)
	protected.POST("/likes/toggle", handler.handleToggleLike)

	router.GET("/events/stream", handler.authorizeStreamRequest, handler.handleEventStream)

	return router, nil
}

type httpHandler struct {
	tokens        TokenManager
	accounts      *users.Service
	articles      *articles.Store
	comments      *comments.Store
	likes         *likes.Store
	views         *metadata.Aggregator
	realtime      *RealtimeDispatcher
	metrics       *metrics.Recorder
	cookieName    string
	secureCookies bool
	heartbeat     time.Duration
	clock         func() time.Time
	logger        *zap.Logger
}

func corsMiddleware(origins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Last-Event-ID"},
		ExposeHeaders:    []string{rateLimitRemainingHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// credentials forbid a literal wildcard, so echo the caller's origin instead.
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

func requestMetrics(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		recorder.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(started))
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	h.authorize(c, extractToken(c, h.cookieName, false))
}

func (h *httpHandler) authorizeStreamRequest(c *gin.Context) {
	h.authorize(c, extractToken(c, h.cookieName, true))
}

func (h *httpHandler) authorize(c *gin.Context, token string) {
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, auth.ErrTokenRevoked) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.Subject)
	c.Set(claimsContextKey, claims)
	c.Next()
}

// identifyViewer attaches the caller's id when a valid token is present and
// otherwise lets the request through anonymously.
func (h *httpHandler) identifyViewer(c *gin.Context) {
	token := extractToken(c, h.cookieName, false)
	if token == "" {
		c.Next()
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Debug("ignoring invalid viewer token", zap.Error(err))
		c.Next()
		return
	}
	c.Set(userIDContextKey, claims.Subject)
	c.Next()
}

func extractToken(c *gin.Context, cookieName string, allowQuery bool) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	if allowQuery {
		return strings.TrimSpace(c.Query(accessTokenQuery))
	}
	return ""
}

// respondError maps engine and account errors onto HTTP statuses.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status, kind := classifyError(err)
	body := gin.H{"error": kind}
	if code := engine.CodeOf(err); code != "" {
		body["code"] = code
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, users.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, engine.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, engine.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, users.ErrUsernameTaken):
		return http.StatusConflict, "username_taken"
	case errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func respondValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "details": err})
}

type validatable interface {
	Validate() error
}

// bindJSON decodes and validates the request body, writing a 400 on failure.
func bindJSON(c *gin.Context, payload validatable) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return false
	}
	if err := payload.Validate(); err != nil {
		respondValidationError(c, err)
		return false
	}
	return true
}
