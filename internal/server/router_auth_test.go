package server

import (
	contextpkg "context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarcoPoloResearchLab/inkwell/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/users/me", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	handler := &httpHandler{
		tokens: stubTokenManager{
			validateErr: jwt.ErrTokenExpired,
		},
		logger: logger,
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), jwt.ErrTokenExpired) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/users/me", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	handler := &httpHandler{
		tokens: stubTokenManager{
			validateErr: errors.New("signature mismatch"),
		},
		logger: logger,
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
}

func TestAuthorizeRequestAcceptsCookieButNotQueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &httpHandler{
		tokens:     stubTokenManager{subject: "user-1"},
		cookieName: defaultCookieName,
		logger:     zap.NewNop(),
	}

	testCases := []struct {
		name     string
		prepare  func(*http.Request)
		stream   bool
		expected int
	}{
		{
			name: "cookie",
			prepare: func(request *http.Request) {
				request.AddCookie(&http.Cookie{Name: defaultCookieName, Value: "token"})
			},
			expected: http.StatusOK,
		},
		{
			name:     "query-on-api-route",
			prepare:  func(request *http.Request) { request.URL.RawQuery = "access_token=token" },
			expected: http.StatusUnauthorized,
		},
		{
			name:     "query-on-stream",
			prepare:  func(request *http.Request) { request.URL.RawQuery = "access_token=token" },
			stream:   true,
			expected: http.StatusOK,
		},
		{
			name:     "non-bearer-header",
			prepare:  func(request *http.Request) { request.Header.Set("Authorization", "Basic abc") },
			expected: http.StatusUnauthorized,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(recorder)
			request := httptest.NewRequest(http.MethodGet, "/users/me", http.NoBody)
			testCase.prepare(request)
			ctx.Request = request

			if testCase.stream {
				handler.authorizeStreamRequest(ctx)
			} else {
				handler.authorizeRequest(ctx)
			}
			if !ctx.IsAborted() {
				ctx.Status(http.StatusOK)
			}

			if recorder.Code != testCase.expected {
				t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, testCase.expected)
			}
			if testCase.expected == http.StatusOK && ctx.GetString(userIDContextKey) != "user-1" {
				t.Fatalf("expected user id to be set, got %q", ctx.GetString(userIDContextKey))
			}
		})
	}
}

type stubTokenManager struct {
	subject     string
	validateErr error
}

func (s stubTokenManager) IssueToken(contextpkg.Context, auth.Subject) (string, int64, error) {
	return "", 0, errors.New("not implemented")
}

func (s stubTokenManager) ValidateToken(string) (auth.Claims, error) {
	if s.validateErr != nil {
		return auth.Claims{}, s.validateErr
	}
	claims := auth.Claims{}
	claims.Subject = s.subject
	return claims, nil
}

func (s stubTokenManager) Revoke(auth.Claims) {}
