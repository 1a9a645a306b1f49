package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linebot-relay-go/internal/model"
	"linebot-relay-go/internal/repository"
	"linebot-relay-go/internal/service"
	"linebot-relay-go/pkg/line/linetest"
	"linebot-relay-go/pkg/tasks"
	"linebot-relay-go/pkg/token"
)

const channelSecret = "test-secret"

type recordingDispatcher struct {
	mu       sync.Mutex
	events   []tasks.InboundEvent
	calls    int
	failures int
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event tasks.InboundEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failures > 0 {
		d.failures--
		return errors.New("broker unavailable")
	}
	d.events = append(d.events, event)
	return nil
}

type testServer struct {
	router     *gin.Engine
	dispatcher *recordingDispatcher
	db         *gorm.DB
	auth       service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	jwtManager := token.NewJWTManager("jwt-secret", 1)
	blacklist := repository.NewTokenBlacklist(rdb)
	authService := service.NewAuthService(repository.NewAdminUserRepository(db), blacklist, jwtManager)
	adminService := service.NewAdminService(
		repository.NewPromptRuleRepository(db),
		repository.NewSkipKeywordRepository(db),
		repository.NewTurnRepository(db),
	)
	dispatcher := &recordingDispatcher{}

	router := NewRouter(RouterDeps{
		Webhook:    NewWebhookHandler(channelSecret, repository.NewEventRepository(rdb, 0), dispatcher),
		Auth:       NewAuthHandler(authService),
		Admin:      NewAdminHandler(adminService),
		JWTManager: jwtManager,
		Blacklist:  blacklist,
	})
	return &testServer{router: router, dispatcher: dispatcher, db: db, auth: authService}
}

func (s *testServer) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	_, err := s.auth.CreateAdmin(context.Background(), "admin", "s3cret")
	require.NoError(t, err)

	w := s.do(http.MethodPost, "/api/v1/admin/login", gin.H{"username": "admin", "password": "s3cret"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func postWebhook(s *testServer, body []byte, signature string) *httptest.ResponseRecorder {
	req := linetest.NewRequest(channelSecret, "/callback", body, signature)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

const webhookBody = `{"destination":"x","events":[
	{"type":"message","webhookEventId":"E1","replyToken":"R1","timestamp":1,
	 "source":{"type":"user","userId":"U1"},
	 "message":{"id":"1","type":"text","text":" hello "}},
	{"type":"message","webhookEventId":"E2","replyToken":"R2","timestamp":2,
	 "source":{"type":"user","userId":"U1"},
	 "message":{"id":"2","type":"image"}}
]}`

func TestCallback_InvalidSignature(t *testing.T) {
	s := newTestServer(t)
	w := postWebhook(s, []byte(webhookBody), "bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid signature", w.Body.String())
	assert.Empty(t, s.dispatcher.events)
}

func TestCallback_DispatchesTextEvents(t *testing.T) {
	s := newTestServer(t)
	body := []byte(webhookBody)
	w := postWebhook(s, body, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	require.Len(t, s.dispatcher.events, 1)
	assert.Equal(t, tasks.InboundEvent{EventID: "E1", UserID: "U1", Text: "hello", ReplyToken: "R1", Timestamp: 1}, s.dispatcher.events[0])
}

func TestCallback_IgnoresRedelivery(t *testing.T) {
	s := newTestServer(t)
	body := []byte(webhookBody)
	require.Equal(t, http.StatusOK, postWebhook(s, body, "").Code)
	require.Equal(t, http.StatusOK, postWebhook(s, body, "").Code)
	assert.Len(t, s.dispatcher.events, 1)
}

func TestCallback_DispatchFailureAllowsRedelivery(t *testing.T) {
	s := newTestServer(t)
	s.dispatcher.failures = 1
	body := []byte(webhookBody)

	w := postWebhook(s, body, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, s.dispatcher.events)

	w = postWebhook(s, body, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, s.dispatcher.calls)
	require.Len(t, s.dispatcher.events, 1)
	assert.Equal(t, "E1", s.dispatcher.events[0].EventID)

	// 成功分发后再次重投仍被去重
	require.Equal(t, http.StatusOK, postWebhook(s, body, "").Code)
	assert.Equal(t, 2, s.dispatcher.calls)
}

func TestAdmin_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/v1/admin/prompt-rules", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/prompt-rules", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_LoginWrongPassword(t *testing.T) {
	s := newTestServer(t)
	_, err := s.auth.CreateAdmin(context.Background(), "admin", "s3cret")
	require.NoError(t, err)
	w := s.do(http.MethodPost, "/api/v1/admin/login", gin.H{"username": "admin", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_PromptRuleLifecycle(t *testing.T) {
	s := newTestServer(t)
	auth := map[string]string{"Authorization": "Bearer " + s.login(t)}

	w := s.do(http.MethodPost, "/api/v1/admin/prompt-rules", gin.H{"triggerText": "我想學英文", "systemPrompt": "P"}, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data model.PromptRule `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.Data.ID)
	require.NotNil(t, created.Data.CreatedBy)

	w = s.do(http.MethodPost, "/api/v1/admin/prompt-rules", gin.H{"triggerText": "我想學英文", "systemPrompt": "Q"}, auth)
	assert.Equal(t, http.StatusConflict, w.Code)

	path := fmt.Sprintf("/api/v1/admin/prompt-rules/%d", created.Data.ID)
	w = s.do(http.MethodPut, path, gin.H{"systemPrompt": "P2"}, auth)
	require.Equal(t, http.StatusOK, w.Code)

	var rule model.PromptRule
	require.NoError(t, s.db.First(&rule, created.Data.ID).Error)
	assert.Equal(t, "P2", rule.SystemPrompt)

	w = s.do(http.MethodDelete, path, nil, auth)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodDelete, path, nil, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_SkipKeywords(t *testing.T) {
	s := newTestServer(t)
	auth := map[string]string{"Authorization": "Bearer " + s.login(t)}

	w := s.do(http.MethodPost, "/api/v1/admin/skip-keywords", gin.H{"text": "OK"}, auth)
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(http.MethodPost, "/api/v1/admin/skip-keywords", gin.H{"text": "ok"}, auth)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/skip-keywords", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []model.SkipKeyword `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/v1/admin/skip-keywords/%d", list.Data[0].ID), nil, auth)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodDelete, "/api/v1/admin/skip-keywords/abc", nil, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_SearchTurns(t *testing.T) {
	s := newTestServer(t)
	auth := map[string]string{"Authorization": "Bearer " + s.login(t)}
	turns := repository.NewTurnRepository(s.db)
	ctx := context.Background()
	require.NoError(t, turns.Append(ctx, &model.Turn{UserID: "U1", Role: model.RoleUser, Content: "hello", SessionID: "s1"}))
	require.NoError(t, turns.Append(ctx, &model.Turn{UserID: "U2", Role: model.RoleUser, Content: "bye", SessionID: "s2"}))

	w := s.do(http.MethodGet, "/api/v1/admin/turns?user_id=U1&page=1&size=10", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data service.TurnListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Data.TotalElements)
	assert.Equal(t, 1, resp.Data.TotalPages)
}

func TestAdmin_LogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	auth := map[string]string{"Authorization": "Bearer " + s.login(t)}

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/logout", nil, auth).Code)
	w := s.do(http.MethodGet, "/api/v1/admin/prompt-rules", nil, auth)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
