package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/middleware"
	"github.com/slotter-org/cocreation-backend/internal/registry"
	"github.com/slotter-org/cocreation-backend/internal/services"
	"github.com/slotter-org/cocreation-backend/internal/socket"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

type fakeOnboarding struct {
	bootSession string
	reply       string
	err         error
}

func (f *fakeOnboarding) Boot(ctx context.Context, token, sessionID string) ([]llm.Message, error) {
	f.bootSession = sessionID
	if f.err != nil {
		return nil, f.err
	}
	return []llm.Message{{Role: "assistant", Content: "hello " + token}}, nil
}

func (f *fakeOnboarding) Chat(ctx context.Context, token, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeGrouping struct {
	formedFor string
	groups    []services.GroupView
	err       error
}

func (f *fakeGrouping) FormGroups(ctx context.Context, sessionID string) ([]services.GroupView, error) {
	f.formedFor = sessionID
	return f.groups, f.err
}

func (f *fakeGrouping) ListGroups(ctx context.Context) ([]services.GroupView, error) {
	return f.groups, f.err
}

type fakeGroupChat struct {
	group *types.Group
	err   error
}

func (f *fakeGroupChat) Resolve(ctx context.Context, ref string) (*types.Group, error) {
	if f.group == nil {
		return nil, services.ErrGroupNotFound
	}
	return f.group, nil
}

func (f *fakeGroupChat) Boot(ctx context.Context, ref string) ([]llm.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []llm.Message{{Role: "assistant", Content: "welcome"}}, nil
}

func (f *fakeGroupChat) Chat(ctx context.Context, ref, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "group reply", nil
}

type fakeFacilitator struct {
	listedFor string
	themes    []services.Theme
	err       error
}

func (f *fakeFacilitator) ListParticipants(ctx context.Context, sessionID string) ([]services.ParticipantSummary, error) {
	f.listedFor = sessionID
	return []services.ParticipantSummary{{Token: "tok-a", Name: "Aino", CreativeRole: "illustrator"}}, f.err
}

func (f *fakeFacilitator) GenerateThemes(ctx context.Context, sessionID string) ([]services.Theme, error) {
	return f.themes, f.err
}

func (f *fakeFacilitator) Export(ctx context.Context) (*services.ExportDump, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.ExportDump{
		Participants: []services.ExportParticipant{},
		Chats:        []services.ExportChat{},
		Profiles:     []services.ExportProfile{},
	}, nil
}

type fixture struct {
	onboarding  *fakeOnboarding
	grouping    *fakeGrouping
	groupChat   *fakeGroupChat
	facilitator *fakeFacilitator
	sessions    *registry.Registry
	hub         *socket.Hub
	router      *gin.Engine
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	f := &fixture{
		onboarding:  &fakeOnboarding{reply: "tell me more"},
		grouping:    &fakeGrouping{},
		groupChat:   &fakeGroupChat{},
		facilitator: &fakeFacilitator{},
		sessions:    registry.New(log, nil),
		hub:         socket.NewHub(log),
	}

	ph := NewParticipantHandler(log, f.onboarding)
	fh := NewFacilitatorHandler(log, f.sessions, f.facilitator, f.grouping)
	gh := NewGroupHandler(log, f.grouping, f.groupChat)
	eh := NewExportHandler(f.facilitator)

	r := gin.New()
	r.Use(middleware.AttachRequestContext(f.sessions, log))
	r.GET("/healthz", Healthz)
	r.GET("/api/participant/boot/:token", ph.Boot)
	r.POST("/api/participant/chat/:token", ph.Chat)
	r.GET("/api/facilitator/participants", fh.ListParticipants)
	r.POST("/api/facilitator/new_session", fh.NewSession)
	r.GET("/api/facilitator/current_session", fh.CurrentSession)
	r.POST("/api/facilitator/themes", fh.Themes)
	r.POST("/api/facilitator/form_groups", fh.FormGroups)
	r.GET("/api/groups", gh.ListGroups)
	r.GET("/api/group/:ref/boot", gh.Boot)
	r.POST("/api/group/:ref/chat", gh.Chat)
	r.GET("/api/group/:ref/ws", GroupFeedHandler(f.hub, f.groupChat, log))
	r.GET("/export_json", eh.ExportJSON)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestHealthz(t *testing.T) {
	f := newFixture()
	code, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestParticipantBootUsesCurrentSession(t *testing.T) {
	f := newFixture()
	sessionID, err := f.sessions.Start(context.Background())
	require.NoError(t, err)

	code, body := f.do(t, http.MethodGet, "/api/participant/boot/tok-a", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, sessionID, f.onboarding.bootSession)
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "hello tok-a", messages[0].(map[string]interface{})["content"])
}

func TestParticipantChatReply(t *testing.T) {
	f := newFixture()
	code, body := f.do(t, http.MethodPost, "/api/participant/chat/tok-a", `{"message":"I draw comics"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "tell me more", body["reply"])
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"not found", services.ErrParticipantNotFound, http.StatusNotFound, false},
		{"empty", services.ErrEmptyMessage, http.StatusBadRequest, false},
		{"timeout", fmt.Errorf("%w: %w", services.ErrUpstream, llm.ErrTimeout), http.StatusGatewayTimeout, true},
		{"upstream", fmt.Errorf("%w: HTTP 500", services.ErrUpstream), http.StatusBadGateway, true},
		{"other", fmt.Errorf("disk full"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.onboarding.err = tc.err
			code, body := f.do(t, http.MethodPost, "/api/participant/chat/tok-a", `{"message":"hi"}`)
			assert.Equal(t, tc.status, code)
			assert.Equal(t, tc.retryable, body["retryable"])
			assert.Equal(t, chatFallbackReply, body["reply"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestChatRejectsMalformedBody(t *testing.T) {
	f := newFixture()
	code, body := f.do(t, http.MethodPost, "/api/group/1/chat", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, chatFallbackReply, body["reply"])
}

func TestNonChatErrorHasNoFallbackReply(t *testing.T) {
	f := newFixture()
	f.groupChat.err = services.ErrGroupNotFound
	code, body := f.do(t, http.MethodGet, "/api/group/9/boot", "")
	assert.Equal(t, http.StatusNotFound, code)
	_, hasReply := body["reply"]
	assert.False(t, hasReply)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture()

	code, body := f.do(t, http.MethodGet, "/api/facilitator/current_session", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "", body["current_session_id"])
	assert.Equal(t, false, body["has_active_session"])

	code, body = f.do(t, http.MethodPost, "/api/facilitator/new_session", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	sessionID := body["session_id"].(string)
	assert.True(t, strings.HasPrefix(sessionID, "session_"))

	_, body = f.do(t, http.MethodGet, "/api/facilitator/current_session", "")
	assert.Equal(t, sessionID, body["current_session_id"])
	assert.Equal(t, true, body["has_active_session"])

	f.do(t, http.MethodGet, "/api/facilitator/participants", "")
	assert.Equal(t, sessionID, f.facilitator.listedFor)
	f.do(t, http.MethodPost, "/api/facilitator/form_groups", "")
	assert.Equal(t, sessionID, f.grouping.formedFor)
}

func TestFormGroupsAndListGroups(t *testing.T) {
	f := newFixture()
	f.grouping.groups = []services.GroupView{{Number: 1, Name: "Group 1", Members: []string{"A", "B", "C"}, URL: "/group1"}}

	code, body := f.do(t, http.MethodPost, "/api/facilitator/form_groups", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["groups"].([]interface{}), 1)

	code, body = f.do(t, http.MethodGet, "/api/groups", "")
	require.Equal(t, http.StatusOK, code)
	group := body["groups"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "/group1", group["url"])
}

func TestThemesUpstreamFailure(t *testing.T) {
	f := newFixture()
	f.facilitator.err = fmt.Errorf("%w: boom", services.ErrUpstream)
	code, body := f.do(t, http.MethodPost, "/api/facilitator/themes", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, true, body["retryable"])
}

func TestExportJSON(t *testing.T) {
	f := newFixture()
	code, body := f.do(t, http.MethodGet, "/export_json", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "participants")
	assert.Contains(t, body, "chats")
	assert.Contains(t, body, "profiles")
}

func TestGroupFeedUnknownGroup(t *testing.T) {
	f := newFixture()
	code, _ := f.do(t, http.MethodGet, "/api/group/7/ws", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGroupFeedStreamsPublishedTurns(t *testing.T) {
	f := newFixture()
	f.groupChat.group = &types.Group{Number: 2, Name: "Group 2"}
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/group/2/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	channel := services.GroupChannel(2)
	require.Eventually(t, func() bool { return f.hub.Subscribers(channel) == 1 }, 2*time.Second, 10*time.Millisecond)

	f.hub.Publish(context.Background(), channel, services.GroupTurn{Group: 2, Role: "user", Content: "hello all"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Channel string             `json:"channel"`
		Payload services.GroupTurn `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, channel, msg.Channel)
	assert.Equal(t, "hello all", msg.Payload.Content)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.hub.Subscribers(channel) == 0 }, 2*time.Second, 10*time.Millisecond)
}
