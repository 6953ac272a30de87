package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smartys-dev/chatdesk/internal/admin"
	"github.com/smartys-dev/chatdesk/internal/chat"
	"github.com/smartys-dev/chatdesk/internal/httpapi/handlers"
	"github.com/smartys-dev/chatdesk/internal/i18n"
	"github.com/smartys-dev/chatdesk/internal/models"
	"github.com/smartys-dev/chatdesk/internal/realtime"
	"github.com/smartys-dev/chatdesk/internal/storage"
	"github.com/smartys-dev/chatdesk/internal/upload"
)

type nopFeed struct{}

func (nopFeed) PublishInserted(context.Context, []byte) error { return nil }

type nopNotifier struct{}

func (nopNotifier) NotifyMessage(context.Context, string, string) error { return nil }
func (nopNotifier) NotifyFile(context.Context, string, string, string, string) error {
	return nil
}
func (nopNotifier) NotifyTemplate(context.Context, string, string, string) error { return nil }

type nopMailer struct{}

func (nopMailer) SendInvitation(string, string, string) error { return nil }
func (nopMailer) SendPasswordReset(string, string) error      { return nil }

type mapResets struct{ tokens map[string]uint64 }

func (m *mapResets) SetResetToken(_ context.Context, tok string, id uint64, _ time.Duration) error {
	m.tokens[tok] = id
	return nil
}
func (m *mapResets) GetResetToken(_ context.Context, tok string) (uint64, error) {
	id, ok := m.tokens[tok]
	if !ok {
		return 0, fmt.Errorf("not found")
	}
	return id, nil
}
func (m *mapResets) DeleteResetToken(_ context.Context, tok string) error {
	delete(m.tokens, tok)
	return nil
}

type testEnv struct {
	router   *gin.Engine
	chatRepo *chat.Repo
	chatSvc  *chat.Service
	adminSvc *admin.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Role{}, &admin.Invitation{},
		&chat.Customer{}, &chat.SessionMapping{}, &chat.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	chatRepo := chat.NewRepo(db)
	chatSvc := chat.NewService(chatRepo, nopFeed{}, nopNotifier{}, 50)
	adminSvc := admin.NewService(admin.NewRepo(db), nopMailer{}, &mapResets{tokens: map[string]uint64{}}, "http://localhost:8080")
	uploadSvc := upload.NewService(storage.NewMemory())

	h := handlers.NewHandler(chatSvc, adminSvc, uploadSvc, realtime.NewHub(), i18n.New("de"), "test-secret")
	return &testEnv{
		router:   NewRouter(h, adminSvc),
		chatRepo: chatRepo,
		chatSvc:  chatSvc,
		adminSvc: adminSvc,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope (%d %s): %v\n%s", w.Code, path, err, w.Body.String())
		}
	}
	return w, env
}

func (e *testEnv) signupAdmin(t *testing.T) string {
	t.Helper()
	w, env := e.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"token":        "admin@example.com",
		"display_name": "Admin",
		"password":     "sehr-geheim",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("bootstrap signup: %d %s", w.Code, w.Body.String())
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("no token in signup response: %s", env.Data)
	}
	return data.Token
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)

	token := e.signupAdmin(t)

	w, _ := e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: %d %s", w.Code, w.Body.String())
	}

	w, env := e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "admin@example.com", "password": "falsch",
	})
	if w.Code != http.StatusUnauthorized || env.Code != 40102 {
		t.Fatalf("bad login: %d code=%d", w.Code, env.Code)
	}

	w, _ = e.do(t, http.MethodGet, "/api/conversations", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated must be rejected: %d", w.Code)
	}
}

func TestConversationEndpoints(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	token := e.signupAdmin(t)

	// inbound hook creates customer, session and message
	w, _ := e.do(t, http.MethodPost, "/api/hooks/messages", "", gin.H{
		"user_id":      "u-jane",
		"user_name":    "Jane",
		"phone_number": "+4915111111",
		"session_id":   "s1",
		"kind":         "customer_text",
		"content":      "hallo",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("inbound hook: %d %s", w.Code, w.Body.String())
	}

	if err := e.chatSvc.LoadConversations(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	w, env := e.do(t, http.MethodGet, "/api/conversations", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var list struct {
		Conversations []chat.Summary `json:"conversations"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil || len(list.Conversations) != 1 {
		t.Fatalf("conversations: %s", env.Data)
	}

	w, _ = e.do(t, http.MethodPost, "/api/conversations/u-jane/select", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("select: %d %s", w.Code, w.Body.String())
	}

	w, _ = e.do(t, http.MethodPost, "/api/conversations/u-jane/reply", token, gin.H{"message": "guten tag"})
	if w.Code != http.StatusOK {
		t.Fatalf("reply: %d %s", w.Code, w.Body.String())
	}

	w, _ = e.do(t, http.MethodPut, "/api/conversations/u-jane/agent", token, gin.H{"enabled": false})
	if w.Code != http.StatusOK {
		t.Fatalf("agent toggle: %d %s", w.Code, w.Body.String())
	}
	w, env = e.do(t, http.MethodGet, "/api/hooks/customers/u-jane/agent", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("agent status: %d", w.Code)
	}
	var status struct {
		AgentEnabled bool `json:"agent_enabled"`
	}
	if err := json.Unmarshal(env.Data, &status); err != nil || status.AgentEnabled {
		t.Fatalf("agent status: %s", env.Data)
	}

	w, _ = e.do(t, http.MethodGet, "/api/conversations/u-jane/export", token, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("hallo")) {
		t.Fatalf("export: %d %s", w.Code, w.Body.String())
	}

	w, env = e.do(t, http.MethodPost, "/api/conversations/u-nobody/select", token, nil)
	if w.Code != http.StatusNotFound || env.Code != 40401 {
		t.Fatalf("unknown conversation: %d code=%d", w.Code, env.Code)
	}
}

func TestAgentStatusReadsStoreNotSummaries(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// customer row exists with the responder off, but no summary has been
	// built: the aggregator never loaded and no feed delivery arrived yet
	if err := e.chatRepo.UpsertCustomer(ctx, &chat.Customer{
		UserID:      "u-race",
		DisplayName: "Race",
		PhoneNumber: "+4915155555",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := e.chatRepo.UpdateAgentEnabled(ctx, "u-race", false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := e.chatRepo.EnsureSession(ctx, "s-race", "u-race"); err != nil {
		t.Fatalf("session: %v", err)
	}

	w, env := e.do(t, http.MethodGet, "/api/hooks/customers/u-race/agent", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("agent status must not depend on loaded summaries: %d %s", w.Code, w.Body.String())
	}
	var status struct {
		AgentEnabled bool `json:"agent_enabled"`
	}
	if err := json.Unmarshal(env.Data, &status); err != nil || status.AgentEnabled {
		t.Fatalf("agent status: %s", env.Data)
	}

	w, env = e.do(t, http.MethodGet, "/api/hooks/customers/u-nobody/agent", "", nil)
	if w.Code != http.StatusNotFound || env.Code != 40401 {
		t.Fatalf("unknown customer: %d code=%d", w.Code, env.Code)
	}
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	adminToken := e.signupAdmin(t)

	// invite and register a regular agent
	w, env := e.do(t, http.MethodPost, "/api/admin/invitations", adminToken, gin.H{"email": "agent@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("invite: %d %s", w.Code, w.Body.String())
	}
	var res admin.InviteResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("invite result: %v", err)
	}
	inv, err := e.adminSvc.ValidateToken(ctx, res.InviteLink[len(res.InviteLink)-36:])
	if err != nil {
		t.Fatalf("token from link: %v", err)
	}

	w, env = e.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"token": inv.Token, "display_name": "Agent", "password": "sehr-geheim",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("agent signup: %d %s", w.Code, w.Body.String())
	}
	var agentData struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &agentData); err != nil {
		t.Fatalf("agent token: %v", err)
	}

	w, env = e.do(t, http.MethodGet, "/api/admin/users", agentData.Token, nil)
	if w.Code != http.StatusForbidden || env.Code != 40301 {
		t.Fatalf("agent must not reach admin routes: %d code=%d", w.Code, env.Code)
	}

	w, _ = e.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin users: %d %s", w.Code, w.Body.String())
	}

	// the admin cannot delete themselves
	w, env = e.do(t, http.MethodDelete, "/api/admin/users/1", adminToken, nil)
	if w.Code != http.StatusBadRequest || env.Code != 40002 {
		t.Fatalf("self delete: %d code=%d", w.Code, env.Code)
	}
}
