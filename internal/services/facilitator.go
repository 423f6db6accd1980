package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/repos"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

const (
	placeholderName = "(chatting...)"
	placeholderRole = "Role being discussed"
	maxGuessLen     = 50
	guessLookback   = 5
)

var greetingPrefixes = []string{"hei", "hello", "hi", "oletko"}

type ParticipantSummary struct {
	Token        string `json:"token"`
	Name         string `json:"name"`
	CreativeRole string `json:"creative_role"`
}

type Theme struct {
	Name      string   `json:"name"`
	Rationale string   `json:"rationale"`
	Quotes    []string `json:"quotes"`
}

type ExportParticipant struct {
	Token        string    `json:"token"`
	Name         string    `json:"name"`
	CreativeRole string    `json:"creative_role"`
	SessionID    *string   `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type ExportChat struct {
	ParticipantToken string    `json:"participant_token"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	Stage            string    `json:"stage"`
	CreatedAt        time.Time `json:"created_at"`
}

type ExportProfile struct {
	ParticipantToken string `json:"participant_token"`
	NeedsSummary     string `json:"needs_summary"`
}

type ExportDump struct {
	Participants []ExportParticipant `json:"participants"`
	Chats        []ExportChat        `json:"chats"`
	Profiles     []ExportProfile     `json:"profiles"`
}

type FacilitatorService interface {
	ListParticipants(ctx context.Context, sessionID string) ([]ParticipantSummary, error)
	GenerateThemes(ctx context.Context, sessionID string) ([]Theme, error)
	Export(ctx context.Context) (*ExportDump, error)
}

type facilitatorService struct {
	db              *gorm.DB
	log             *logger.Logger
	gateway         llm.Gateway
	participantRepo repos.ParticipantRepo
	chatTurnRepo    repos.ChatTurnRepo
	profileRepo     repos.ProfileRepo
}

func NewFacilitatorService(
	db *gorm.DB,
	log *logger.Logger,
	gateway llm.Gateway,
	participantRepo repos.ParticipantRepo,
	chatTurnRepo repos.ChatTurnRepo,
	profileRepo repos.ProfileRepo,
) FacilitatorService {
	return &facilitatorService{
		db:              db,
		log:             log.With("service", "FacilitatorService"),
		gateway:         gateway,
		participantRepo: participantRepo,
		chatTurnRepo:    chatTurnRepo,
		profileRepo:     profileRepo,
	}
}

// ListParticipants returns participants of sessionID that have written at
// least once, newest first. An empty sessionID lists everyone.
func (fs *facilitatorService) ListParticipants(ctx context.Context, sessionID string) ([]ParticipantSummary, error) {
	participants, err := fs.participantRepo.ListWithUserTurns(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	out := make([]ParticipantSummary, 0, len(participants))
	for _, p := range participants {
		name := p.Name
		if name == "" {
			name = fs.guessName(ctx, p)
		}
		role := p.CreativeRole
		if role == "" {
			role = placeholderRole
		}
		out = append(out, ParticipantSummary{Token: p.Token, Name: name, CreativeRole: role})
	}
	return out, nil
}

// guessName picks a display name from recent messages. It is never stored.
func (fs *facilitatorService) guessName(ctx context.Context, p *types.Participant) string {
	recent, err := fs.chatTurnRepo.RecentByRole(ctx, nil, p.ID, types.RoleUser, guessLookback)
	if err != nil {
		fs.log.Warn("Failed to load recent turns for name guess", "participant", p.Token, "error", err)
		return placeholderName
	}
	for _, turn := range recent {
		if guess, ok := nameGuess(turn.Content); ok {
			return guess
		}
	}
	return placeholderName
}

func nameGuess(content string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len([]rune(line)) > maxGuessLen {
			return "", false
		}
		lower := strings.ToLower(line)
		for _, greeting := range greetingPrefixes {
			if strings.HasPrefix(lower, greeting) {
				return "", false
			}
		}
		return line, true
	}
	return "", false
}

type themesReply struct {
	Themes []struct {
		Name                 string   `json:"name"`
		Rationale            string   `json:"rationale"`
		RepresentativeQuotes []string `json:"representative_quotes"`
	} `json:"themes"`
}

// GenerateThemes clusters the session's needs summaries into shared themes.
// No summaries or an unreadable reply give an empty list.
func (fs *facilitatorService) GenerateThemes(ctx context.Context, sessionID string) ([]Theme, error) {
	profiles, err := fs.profileRepo.ListBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	texts := make([]string, 0, len(profiles))
	for _, pr := range profiles {
		if strings.TrimSpace(pr.NeedsSummary) != "" {
			texts = append(texts, pr.NeedsSummary)
		}
	}
	if len(texts) == 0 {
		return []Theme{}, nil
	}

	reply, err := fs.gateway.Complete(ctx, []llm.Message{
		{Role: types.RoleSystem, Content: themesPersona},
		{Role: types.RoleUser, Content: strings.Join(texts, "\n---\n")},
	}, themesOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	themes := []Theme{}
	raw, ok := llm.ExtractJSONObject(reply)
	if !ok {
		fs.log.Warn("Themes reply had no JSON object")
		return themes, nil
	}
	var parsed themesReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		fs.log.Warn("Failed to decode themes reply", "error", err)
		return themes, nil
	}
	for _, t := range parsed.Themes {
		quotes := t.RepresentativeQuotes
		if quotes == nil {
			quotes = []string{}
		}
		themes = append(themes, Theme{Name: t.Name, Rationale: t.Rationale, Quotes: quotes})
	}
	return themes, nil
}

// Export dumps participants, onboarding transcripts and profiles.
func (fs *facilitatorService) Export(ctx context.Context) (*ExportDump, error) {
	var (
		participants []*types.Participant
		turns        []*types.ChatTurn
		profiles     []*types.ParticipantProfile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = fs.participantRepo.ListAll(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		turns, err = fs.chatTurnRepo.ListAll(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		profiles, err = fs.profileRepo.ListAll(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load export data: %w", err)
	}

	tokens := make(map[uuid.UUID]string, len(participants))
	dump := &ExportDump{
		Participants: make([]ExportParticipant, 0, len(participants)),
		Chats:        make([]ExportChat, 0, len(turns)),
		Profiles:     make([]ExportProfile, 0, len(profiles)),
	}
	for _, p := range participants {
		tokens[p.ID] = p.Token
		dump.Participants = append(dump.Participants, ExportParticipant{
			Token:        p.Token,
			Name:         p.Name,
			CreativeRole: p.CreativeRole,
			SessionID:    p.SessionID,
			CreatedAt:    p.CreatedAt,
		})
	}
	for _, t := range turns {
		dump.Chats = append(dump.Chats, ExportChat{
			ParticipantToken: tokens[t.ParticipantID],
			Role:             t.Role,
			Content:          t.Content,
			Stage:            t.Stage,
			CreatedAt:        t.CreatedAt,
		})
	}
	for _, pr := range profiles {
		dump.Profiles = append(dump.Profiles, ExportProfile{
			ParticipantToken: tokens[pr.ParticipantID],
			NeedsSummary:     pr.NeedsSummary,
		})
	}
	fs.log.Info("Export built", "participants", len(dump.Participants), "chats", len(dump.Chats), "profiles", len(dump.Profiles))
	return dump, nil
}
