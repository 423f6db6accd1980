package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/cocreation-backend/internal/config"
	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

func TestBootSeedsPersonaAndOpening(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{})
	ctx := context.Background()

	messages, err := env.onboarding.Boot(ctx, "p1", "session_a")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, types.RoleSystem, messages[0].Role)
	assert.Equal(t, participantPersona, messages[0].Content)
	assert.Equal(t, llm.Message{Role: types.RoleAssistant, Content: openingMessage}, messages[1])

	again, err := env.onboarding.Boot(ctx, "p1", "session_b")
	require.NoError(t, err)
	assert.Equal(t, messages, again)

	p, err := env.participants.GetByToken(ctx, nil, "p1")
	require.NoError(t, err)
	require.NotNil(t, p.SessionID)
	assert.Equal(t, "session_a", *p.SessionID)
}

func TestChatUnknownParticipant(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{})
	_, err := env.onboarding.Chat(context.Background(), "ghost", "hello")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{})
	_, err := env.onboarding.Chat(context.Background(), "p1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChatTranscriptInterleavesInCallOrder(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	env.gw.script(kindDialogue, "reply 1", "reply 2", "reply 3")
	for i := 1; i <= 3; i++ {
		reply, err := env.onboarding.Chat(ctx, "p1", fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("reply %d", i), reply)
	}

	transcript, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)
	require.Len(t, transcript, 8)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, llm.Message{Role: types.RoleUser, Content: fmt.Sprintf("message %d", i)}, transcript[2*i])
		assert.Equal(t, llm.Message{Role: types.RoleAssistant, Content: fmt.Sprintf("reply %d", i)}, transcript[2*i+1])
	}
}

func TestConclusionTriggeredByTurnThreshold(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{ConcludeAfter: 5})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)
	p, err := env.participants.GetByToken(ctx, nil, "p1")
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		_, err := env.onboarding.Chat(ctx, "p1", fmt.Sprintf("answer %d", i))
		require.NoError(t, err)
	}
	profile, err := env.profiles.GetByParticipantID(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Nil(t, profile, "four turns must not conclude")
	for _, call := range env.gw.callsOf(kindDialogue) {
		assert.NotEqual(t, closingDirective, call.messages[len(call.messages)-1].Content)
	}

	env.gw.script(kindDialogue, "Here is what we talked about.")
	_, err = env.onboarding.Chat(ctx, "p1", "answer 5")
	require.NoError(t, err)

	profile, err = env.profiles.GetByParticipantID(ctx, nil, p.ID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Here is what we talked about.", profile.NeedsSummary)

	calls := env.gw.callsOf(kindDialogue)
	last := calls[len(calls)-1].messages
	assert.Equal(t, llm.Message{Role: types.RoleSystem, Content: closingDirective}, last[len(last)-1])
	assert.Equal(t, dialogueOptions, calls[len(calls)-1].opts)

	transcript, err := env.turns.ListByParticipant(ctx, nil, p.ID)
	require.NoError(t, err)
	for _, turn := range transcript {
		assert.NotEqual(t, closingDirective, turn.Content, "directive must not be persisted")
	}
}

func TestConclusionTriggeredByMarker(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{ConcludeAfter: 5})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	summary := "Thanks Ada! Here's your Upskilling Profile:\n- storyboarding"
	env.gw.script(kindDialogue, summary)
	_, err = env.onboarding.Chat(ctx, "p1", "I want to learn storyboarding")
	require.NoError(t, err)

	p, err := env.participants.GetByToken(ctx, nil, "p1")
	require.NoError(t, err)
	profile, err := env.profiles.GetByParticipantID(ctx, nil, p.ID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, summary, profile.NeedsSummary)
}

func TestProfilePolicyFirstWriteWins(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{ConcludeAfter: 1, ProfilePolicy: config.PolicyFirstWriteWins})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	env.gw.script(kindDialogue, "first summary", "second summary")
	_, err = env.onboarding.Chat(ctx, "p1", "one")
	require.NoError(t, err)
	_, err = env.onboarding.Chat(ctx, "p1", "two")
	require.NoError(t, err)

	p, _ := env.participants.GetByToken(ctx, nil, "p1")
	profile, err := env.profiles.GetByParticipantID(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "first summary", profile.NeedsSummary)
}

func TestProfilePolicyLastWriteWins(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{ConcludeAfter: 1})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	env.gw.script(kindDialogue, "first summary", "second summary")
	_, err = env.onboarding.Chat(ctx, "p1", "one")
	require.NoError(t, err)
	_, err = env.onboarding.Chat(ctx, "p1", "two")
	require.NoError(t, err)

	p, _ := env.participants.GetByToken(ctx, nil, "p1")
	profile, err := env.profiles.GetByParticipantID(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "second summary", profile.NeedsSummary)
}

func TestExtractionDoesNotOverwrite(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	env.gw.script(kindExtract,
		`{"name": "Ada", "role": null}`,
		`Sure: {"name": "Grace", "role": "illustrator"}`,
	)
	_, err = env.onboarding.Chat(ctx, "p1", "Ada")
	require.NoError(t, err)
	_, err = env.onboarding.Chat(ctx, "p1", "Actually call me Grace, I illustrate")
	require.NoError(t, err)

	p, err := env.participants.GetByToken(ctx, nil, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "illustrator", p.CreativeRole)
	assert.Equal(t, extractionOptions, env.gw.callsOf(kindExtract)[0].opts)
}

func TestExtractionFailureDoesNotAbortTurn(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	env.gw.failKind(kindExtract, errStub)
	env.gw.script(kindDialogue, "nice to meet you")
	reply, err := env.onboarding.Chat(ctx, "p1", "I'm Ada")
	require.NoError(t, err)
	assert.Equal(t, "nice to meet you", reply)

	env.gw.failKind(kindExtract, nil)
	env.gw.script(kindExtract, "not json at all")
	_, err = env.onboarding.Chat(ctx, "p1", "I paint")
	require.NoError(t, err)

	p, _ := env.participants.GetByToken(ctx, nil, "p1")
	assert.Empty(t, p.Name)
}

func TestExtractionDiscardsShortAndTruncatesLong(t *testing.T) {
	long := make([]rune, 250)
	for i := range long {
		long[i] = 'r'
	}
	env := newTestEnv(t, OnboardingOptions{})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	env.gw.script(kindExtract, fmt.Sprintf(`{"name": " A ", "role": %q}`, string(long)))
	_, err = env.onboarding.Chat(ctx, "p1", "hello")
	require.NoError(t, err)

	p, _ := env.participants.GetByToken(ctx, nil, "p1")
	assert.Empty(t, p.Name)
	assert.Len(t, p.CreativeRole, maxRoleLen)
}

func TestFinalExtractionRunsAtConclusion(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{ConcludeAfter: 1})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	env.gw.script(kindExtract, `{"name": null, "role": null}`, `{"name": "Ada", "role": "animator"}`)
	_, err = env.onboarding.Chat(ctx, "p1", "hello")
	require.NoError(t, err)

	calls := env.gw.callsOf(kindExtract)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].messages[1].Content, "- Name: missing")

	p, _ := env.participants.GetByToken(ctx, nil, "p1")
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "animator", p.CreativeRole)
}

func TestDialogueFailureKeepsUserTurn(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	env.gw.failKind(kindDialogue, fmt.Errorf("call: %w", llm.ErrTimeout))
	_, err = env.onboarding.Chat(ctx, "p1", "are you there?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, llm.ErrTimeout))

	p, _ := env.participants.GetByToken(ctx, nil, "p1")
	transcript, err := env.turns.ListByParticipant(ctx, nil, p.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, "are you there?", transcript[2].Content)
}

func TestConclusionEmbedsSummaryWhenEnabled(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{ConcludeAfter: 1, EmbedConclusions: true})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	env.gw.script(kindDialogue, "summary text")
	_, err = env.onboarding.Chat(ctx, "p1", "hello")
	require.NoError(t, err)

	require.Len(t, env.gw.embeds, 1)
	assert.Equal(t, []string{"summary text"}, env.gw.embeds[0])
	p, _ := env.participants.GetByToken(ctx, nil, "p1")
	profile, err := env.profiles.GetByParticipantID(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `[0.1,0.2,0.3]`, string(profile.Embedding))
}

func TestRenderContextLeavesLogUntouched(t *testing.T) {
	log := []*types.ChatTurn{
		{Role: types.RoleSystem, Content: "persona"},
		{Role: types.RoleUser, Content: "hi"},
	}
	ctxMessages := renderContext(log, "wrap up")
	require.Len(t, ctxMessages, 3)
	assert.Equal(t, llm.Message{Role: types.RoleSystem, Content: "wrap up"}, ctxMessages[2])
	assert.Len(t, log, 2)
}

func TestFirstWriteWinsEmbedsOnlyTheKeptSummary(t *testing.T) {
	env := newTestEnv(t, OnboardingOptions{ConcludeAfter: 1, ProfilePolicy: config.PolicyFirstWriteWins, EmbedConclusions: true})
	ctx := context.Background()
	_, err := env.onboarding.Boot(ctx, "p1", "")
	require.NoError(t, err)

	env.gw.script(kindDialogue, "first summary", "second summary")
	_, err = env.onboarding.Chat(ctx, "p1", "one")
	require.NoError(t, err)
	_, err = env.onboarding.Chat(ctx, "p1", "two")
	require.NoError(t, err)

	env.gw.mu.Lock()
	defer env.gw.mu.Unlock()
	require.Len(t, env.gw.embeds, 1)
	assert.Equal(t, []string{"first summary"}, env.gw.embeds[0])
}
