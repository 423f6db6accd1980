package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/chatlock"
	"github.com/slotter-org/cocreation-backend/internal/config"
	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/repos"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

type OnboardingService interface {
	Boot(ctx context.Context, token, sessionID string) ([]llm.Message, error)
	Chat(ctx context.Context, token, text string) (string, error)
}

type OnboardingOptions struct {
	ConcludeAfter    int
	ProfilePolicy    string
	EmbedConclusions bool
}

type onboardingService struct {
	db                *gorm.DB
	log               *logger.Logger
	gateway           llm.Gateway
	locks             *chatlock.Keyed
	participantRepo   repos.ParticipantRepo
	chatTurnRepo      repos.ChatTurnRepo
	profileRepo       repos.ProfileRepo
	extractionService ExtractionService
	opts              OnboardingOptions
}

func NewOnboardingService(
	db *gorm.DB,
	log *logger.Logger,
	gateway llm.Gateway,
	locks *chatlock.Keyed,
	participantRepo repos.ParticipantRepo,
	chatTurnRepo repos.ChatTurnRepo,
	profileRepo repos.ProfileRepo,
	extractionService ExtractionService,
	opts OnboardingOptions,
) OnboardingService {
	if opts.ConcludeAfter <= 0 {
		opts.ConcludeAfter = 5
	}
	if opts.ProfilePolicy == "" {
		opts.ProfilePolicy = config.PolicyLastWriteWins
	}
	return &onboardingService{
		db:                db,
		log:               log.With("service", "OnboardingService"),
		gateway:           gateway,
		locks:             locks,
		participantRepo:   participantRepo,
		chatTurnRepo:      chatTurnRepo,
		profileRepo:       profileRepo,
		extractionService: extractionService,
		opts:              opts,
	}
}

// Boot creates the participant on first contact and seeds the persona and
// opening question. Later boots return the stored transcript unchanged.
func (ob *onboardingService) Boot(ctx context.Context, token, sessionID string) ([]llm.Message, error) {
	unlock := ob.locks.Lock(chatlock.ParticipantKey(token))
	defer unlock()

	var transcript []*types.ChatTurn
	err := ob.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//1) Find or create participant
		participant, err := ob.participantRepo.GetByToken(ctx, tx, token)
		if err != nil {
			return fmt.Errorf("failed to get participant: %w", err)
		}
		if participant == nil {
			participant = &types.Participant{Token: token}
			if sessionID != "" {
				participant.SessionID = &sessionID
			}
			if _, err := ob.participantRepo.Create(ctx, tx, []*types.Participant{participant}); err != nil {
				return fmt.Errorf("failed to create participant: %w", err)
			}
			ob.log.Info("New participant joined", "participant", token, "sessionID", sessionID)
		}

		//2) Replay an existing transcript as is
		transcript, err = ob.chatTurnRepo.ListByParticipant(ctx, tx, participant.ID)
		if err != nil {
			return fmt.Errorf("failed to load transcript: %w", err)
		}
		if len(transcript) > 0 {
			return nil
		}

		//3) Seed persona and opening question
		transcript = []*types.ChatTurn{
			{ParticipantID: participant.ID, Role: types.RoleSystem, Content: participantPersona, Stage: types.StageOnboarding},
			{ParticipantID: participant.ID, Role: types.RoleAssistant, Content: openingMessage, Stage: types.StageOnboarding},
		}
		return ob.chatTurnRepo.Append(ctx, tx, transcript...)
	})
	if err != nil {
		ob.log.Error("Participant boot failed", "participant", token, "error", err)
		return nil, err
	}
	return toMessages(transcript), nil
}

// Chat records the user's turn, asks the model for the next reply and
// records that too. The user turn is stored before the model call so a
// failed call can be retried without losing input.
func (ob *onboardingService) Chat(ctx context.Context, token, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	unlock := ob.locks.Lock(chatlock.ParticipantKey(token))
	defer unlock()

	//1) Resolve participant
	participant, err := ob.participantRepo.GetByToken(ctx, nil, token)
	if err != nil {
		return "", fmt.Errorf("failed to get participant: %w", err)
	}
	if participant == nil {
		return "", ErrParticipantNotFound
	}

	//2) Persist the user turn
	userTurn := &types.ChatTurn{ParticipantID: participant.ID, Role: types.RoleUser, Content: text, Stage: types.StageOnboarding}
	if err := ob.chatTurnRepo.Append(ctx, nil, userTurn); err != nil {
		return "", fmt.Errorf("failed to store user turn: %w", err)
	}

	//3) Replay the log, adding the closing directive once enough turns exist
	transcript, err := ob.chatTurnRepo.ListByParticipant(ctx, nil, participant.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load transcript: %w", err)
	}
	userTurns := countRole(transcript, types.RoleUser)
	thresholdMet := userTurns >= ob.opts.ConcludeAfter
	var directives []string
	if thresholdMet {
		directives = append(directives, closingDirective)
	}

	reply, err := ob.gateway.Complete(ctx, renderContext(transcript, directives...), dialogueOptions)
	if err != nil {
		ob.log.Warn("Dialogue completion failed", "participant", token, "userTurns", userTurns, "error", err)
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	//4) Persist the reply
	if err := ob.chatTurnRepo.Append(ctx, nil, &types.ChatTurn{
		ParticipantID: participant.ID,
		Role:          types.RoleAssistant,
		Content:       reply,
		Stage:         types.StageOnboarding,
	}); err != nil {
		return "", fmt.Errorf("failed to store assistant turn: %w", err)
	}

	//5) Advisory extraction
	ob.extractionService.Extract(ctx, participant, transcript)

	//6) Conclusion
	if thresholdMet || hasConclusionMarker(reply) {
		ob.conclude(ctx, participant, transcript, reply)
	}
	return reply, nil
}

func (ob *onboardingService) conclude(ctx context.Context, participant *types.Participant, transcript []*types.ChatTurn, reply string) {
	overwrite := ob.opts.ProfilePolicy != config.PolicyFirstWriteWins
	if !overwrite {
		existing, err := ob.profileRepo.GetByParticipantID(ctx, nil, participant.ID)
		if err != nil {
			ob.log.Warn("Failed to check existing profile", "participant", participant.Token, "error", err)
		} else if existing != nil {
			ob.log.Debug("Profile already concluded, keeping first summary", "participant", participant.Token)
			ob.extractionService.ExtractMissing(ctx, participant, transcript)
			return
		}
	}
	profile := &types.ParticipantProfile{ParticipantID: participant.ID, NeedsSummary: reply}
	if err := ob.profileRepo.Upsert(ctx, nil, profile, overwrite); err != nil {
		ob.log.Error("Failed to store participant profile", "participant", participant.Token, "error", err)
	} else {
		ob.log.Info("Onboarding concluded, profile stored", "participant", participant.Token, "overwrite", overwrite)
		if ob.opts.EmbedConclusions {
			ob.embedSummary(ctx, participant, reply)
		}
	}
	ob.extractionService.ExtractMissing(ctx, participant, transcript)
}

func (ob *onboardingService) embedSummary(ctx context.Context, participant *types.Participant, summary string) {
	vectors, err := ob.gateway.Embed(ctx, []string{summary})
	if err != nil || len(vectors) == 0 {
		ob.log.Warn("Failed to embed needs summary", "participant", participant.Token, "error", err)
		return
	}
	raw, err := json.Marshal(vectors[0])
	if err != nil {
		ob.log.Warn("Failed to encode embedding", "participant", participant.Token, "error", err)
		return
	}
	if err := ob.profileRepo.SetEmbedding(ctx, nil, participant.ID, datatypes.JSON(raw)); err != nil {
		ob.log.Warn("Failed to store embedding", "participant", participant.Token, "error", err)
	}
}

func hasConclusionMarker(reply string) bool {
	return strings.Contains(strings.ToLower(reply), "upskilling profile") ||
		strings.Contains(reply, "You're ready to connect") ||
		strings.Contains(reply, "You’re ready to connect")
}

func countRole(transcript []*types.ChatTurn, role string) int {
	n := 0
	for _, turn := range transcript {
		if turn.Role == role {
			n++
		}
	}
	return n
}

func toMessages(transcript []*types.ChatTurn) []llm.Message {
	return renderContext(transcript)
}
