package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/articles"
	"github.com/MarcoPoloResearchLab/inkwell/internal/auth"
	"github.com/MarcoPoloResearchLab/inkwell/internal/comments"
	"github.com/MarcoPoloResearchLab/inkwell/internal/engine"
	"github.com/MarcoPoloResearchLab/inkwell/internal/likes"
	"github.com/MarcoPoloResearchLab/inkwell/internal/metadata"
	"github.com/MarcoPoloResearchLab/inkwell/internal/metrics"
	"github.com/MarcoPoloResearchLab/inkwell/internal/users"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testSigningSecret = "test-signing-secret"
	testIssuer        = "inkwell-auth"
	testAudience      = "inkwell-api"
	jsonContentType   = "application/json"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnvironment struct {
	handler  http.Handler
	clock    *engine.ManualClock
	tokens   *auth.TokenIssuer
	accounts *users.Service
	articles *articles.Store
	comments *comments.Store
	likes    *likes.Store
	realtime *RealtimeDispatcher
	metrics  *metrics.Recorder
	logs     *observer.ObservedLogs
}

func newTestEnvironment(t *testing.T) *testEnvironment {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.Account{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	clock := engine.NewManualClock(testEpoch)
	ids := engine.NewUUIDProvider()

	accounts, err := users.NewService(users.ServiceConfig{
		Database:     db,
		IDProvider:   ids,
		PasswordCost: bcrypt.MinCost,
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("failed to build accounts: %v", err)
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		Audience:      testAudience,
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}
	articleStore, err := articles.NewStore(articles.StoreConfig{Clock: clock.Now, IDProvider: ids, Logger: logger})
	if err != nil {
		t.Fatalf("failed to build article store: %v", err)
	}
	commentStore, err := comments.NewStore(comments.StoreConfig{Clock: clock.Now, IDProvider: ids, Users: accounts, Logger: logger})
	if err != nil {
		t.Fatalf("failed to build comment store: %v", err)
	}
	likeStore, err := likes.NewStore(likes.StoreConfig{Clock: clock.Now, IDProvider: ids, Logger: logger})
	if err != nil {
		t.Fatalf("failed to build like store: %v", err)
	}
	views, err := metadata.NewAggregator(metadata.Config{
		Articles: articleStore,
		Comments: commentStore,
		Likes:    likeStore,
		Users:    accounts,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("failed to build aggregator: %v", err)
	}

	realtime := NewRealtimeDispatcher()
	recorder := metrics.NewRecorder()
	handler, err := NewHTTPHandler(Dependencies{
		TokenManager:      tokens,
		Accounts:          accounts,
		Articles:          articleStore,
		Comments:          commentStore,
		Likes:             likeStore,
		Views:             views,
		Realtime:          realtime,
		Metrics:           recorder,
		HeartbeatInterval: time.Hour,
		Clock:             clock.Now,
		Logger:            logger,
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	return &testEnvironment{
		handler:  handler,
		clock:    clock,
		tokens:   tokens,
		accounts: accounts,
		articles: articleStore,
		comments: commentStore,
		likes:    likeStore,
		realtime: realtime,
		metrics:  recorder,
		logs:     logs,
	}
}

func (e *testEnvironment) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", jsonContentType)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)
	return recorder
}

// signUp registers username and returns its id and access token.
func (e *testEnvironment) signUp(t *testing.T, username string) (string, string) {
	t.Helper()
	recorder := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"password": "correct-horse",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register %s: unexpected status %d: %s", username, recorder.Code, recorder.Body.String())
	}
	response := decodeJSON[authResponsePayload](t, recorder)
	return response.User.ID, response.AccessToken
}

// publish creates an article through the store and returns it.
func (e *testEnvironment) publish(t *testing.T, authorID, title string) articles.Article {
	t.Helper()
	article, err := e.articles.Create(articles.CreateInput{Title: title, Content: "about " + title, AuthorID: authorID})
	if err != nil {
		t.Fatalf("failed to create article: %v", err)
	}
	return article
}

func decodeJSON[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var payload T
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("unexpected status: got %d, want %d (body %s)", recorder.Code, status, recorder.Body.String())
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
