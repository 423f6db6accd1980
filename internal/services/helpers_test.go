package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/chatlock"
	"github.com/slotter-org/cocreation-backend/internal/db"
	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/repos"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

const (
	kindDialogue  = "dialogue"
	kindExtract   = "extract"
	kindGrouping  = "grouping"
	kindThemes    = "themes"
	kindGroupChat = "groupchat"
)

var errStub = errors.New("stub failure")

type stubCall struct {
	kind     string
	messages []llm.Message
	opts     llm.Options
}

// stubGateway answers by prompt kind. A kind with no scripted reply gets a
// default; a scripted error is returned as is.
type stubGateway struct {
	mu      sync.Mutex
	replies map[string][]string
	fail    map[string]error
	calls   []stubCall
	embeds  [][]string
}

func newStubGateway() *stubGateway {
	return &stubGateway{replies: map[string][]string{}, fail: map[string]error{}}
}

func (s *stubGateway) script(kind string, replies ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[kind] = append(s.replies[kind], replies...)
}

func (s *stubGateway) failKind(kind string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[kind] = err
}

func (s *stubGateway) callsOf(kind string) []stubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stubCall
	for _, c := range s.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func kindOf(messages []llm.Message) string {
	if len(messages) == 0 {
		return kindDialogue
	}
	first := messages[0].Content
	switch {
	case first == extractionPersona:
		return kindExtract
	case first == groupingPersona:
		return kindGrouping
	case first == themesPersona:
		return kindThemes
	case strings.HasPrefix(first, groupChairPersona):
		return kindGroupChat
	default:
		return kindDialogue
	}
}

func (s *stubGateway) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind := kindOf(messages)
	copied := append([]llm.Message(nil), messages...)
	s.calls = append(s.calls, stubCall{kind: kind, messages: copied, opts: opts})
	if err := s.fail[kind]; err != nil {
		return "", err
	}
	if queue := s.replies[kind]; len(queue) > 0 {
		s.replies[kind] = queue[1:]
		return queue[0], nil
	}
	switch kind {
	case kindExtract:
		return `{"name": null, "role": null}`, nil
	case kindThemes:
		return `{"themes": []}`, nil
	default:
		return "ok", nil
	}
}

func (s *stubGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeds = append(s.embeds, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type testEnv struct {
	db           *gorm.DB
	gw           *stubGateway
	participants repos.ParticipantRepo
	turns        repos.ChatTurnRepo
	profiles     repos.ProfileRepo
	groups       repos.GroupRepo
	groupChats   repos.GroupChatRepo
	onboarding   OnboardingService
	grouping     GroupingService
	groupChat    GroupChatService
	facilitator  FacilitatorService
}

func newTestEnv(t *testing.T, opts OnboardingOptions) *testEnv {
	t.Helper()
	log := logger.NewNop()
	svc, err := db.NewSQLiteService(filepath.Join(t.TempDir(), "services.db"), log)
	require.NoError(t, err)
	require.NoError(t, svc.AutoMigrateAll())
	t.Cleanup(func() {
		if sqlDB, err := svc.DB().DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	gdb := svc.DB()

	env := &testEnv{
		db:           gdb,
		gw:           newStubGateway(),
		participants: repos.NewParticipantRepo(gdb, log),
		turns:        repos.NewChatTurnRepo(gdb, log),
		profiles:     repos.NewProfileRepo(gdb, log),
		groups:       repos.NewGroupRepo(gdb, log),
		groupChats:   repos.NewGroupChatRepo(gdb, log),
	}
	locks := chatlock.New()
	extraction := NewExtractionService(log, env.gw, env.participants)
	env.onboarding = NewOnboardingService(gdb, log, env.gw, locks, env.participants, env.turns, env.profiles, extraction, opts)
	env.grouping = NewGroupingService(gdb, log, env.gw, env.participants, env.profiles, env.groups, nil)
	env.groupChat = NewGroupChatService(gdb, log, env.gw, locks, env.groups, env.groupChats, nil)
	env.facilitator = NewFacilitatorService(gdb, log, env.gw, env.participants, env.turns, env.profiles)
	return env
}

// addEligible stores participants that already carry a name and role.
func (e *testEnv) addEligible(t *testing.T, sessionID string, names ...string) []*types.Participant {
	t.Helper()
	var sid *string
	if sessionID != "" {
		sid = &sessionID
	}
	people := make([]*types.Participant, 0, len(names))
	for _, n := range names {
		people = append(people, &types.Participant{
			Token:        "tok-" + strings.ToLower(n),
			Name:         n,
			CreativeRole: "role of " + n,
			SessionID:    sid,
		})
	}
	created, err := e.participants.Create(context.Background(), nil, people)
	require.NoError(t, err)
	return created
}

func (e *testEnv) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func loggerForTest() *logger.Logger {
	return logger.NewNop()
}
