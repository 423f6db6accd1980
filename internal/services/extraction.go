package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slotter-org/cocreation-backend/internal/llm"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/repos"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

const (
	maxNameLen = 120
	maxRoleLen = 200
)

// ExtractionService fills a participant's missing name and creative role from
// their transcript. It never returns an error: failures are logged and the
// participant is left as it was.
type ExtractionService interface {
	Extract(ctx context.Context, participant *types.Participant, transcript []*types.ChatTurn)
	ExtractMissing(ctx context.Context, participant *types.Participant, transcript []*types.ChatTurn)
}

type extractionService struct {
	log             *logger.Logger
	gateway         llm.Gateway
	participantRepo repos.ParticipantRepo
}

func NewExtractionService(log *logger.Logger, gateway llm.Gateway, participantRepo repos.ParticipantRepo) ExtractionService {
	return &extractionService{
		log:             log.With("service", "ExtractionService"),
		gateway:         gateway,
		participantRepo: participantRepo,
	}
}

type extractedIdentity struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

// Extract runs the per-turn pass.
func (es *extractionService) Extract(ctx context.Context, participant *types.Participant, transcript []*types.ChatTurn) {
	if participant.Name != "" && participant.CreativeRole != "" {
		return
	}
	es.run(ctx, participant, extractionPrompt(transcript), "turn")
}

// ExtractMissing runs the concluding pass, telling the model which fields are
// still missing.
func (es *extractionService) ExtractMissing(ctx context.Context, participant *types.Participant, transcript []*types.ChatTurn) {
	if participant.Name != "" && participant.CreativeRole != "" {
		return
	}
	prompt := finalExtractionPrompt(transcript, participant.Name != "", participant.CreativeRole != "")
	es.run(ctx, participant, prompt, "final")
}

func (es *extractionService) run(ctx context.Context, participant *types.Participant, prompt, pass string) {
	reply, err := es.gateway.Complete(ctx, []llm.Message{
		{Role: types.RoleSystem, Content: extractionPersona},
		{Role: types.RoleUser, Content: prompt},
	}, extractionOptions)
	if err != nil {
		es.log.Warn("Extraction call failed", "pass", pass, "participant", participant.Token, "error", err)
		return
	}
	identity, err := parseIdentity(reply)
	if err != nil {
		es.log.Warn("Extraction reply unusable", "pass", pass, "participant", participant.Token, "error", err)
		return
	}

	name, role := "", ""
	if participant.Name == "" {
		name = cleanField(identity.Name, maxNameLen)
	}
	if participant.CreativeRole == "" {
		role = cleanField(identity.Role, maxRoleLen)
	}
	if name == "" && role == "" {
		return
	}
	if err := es.participantRepo.FillIdentity(ctx, nil, participant.ID, name, role); err != nil {
		es.log.Warn("Failed to store extracted identity", "participant", participant.Token, "error", err)
		return
	}
	if name != "" {
		participant.Name = name
		es.log.Info("Extracted name", "pass", pass, "participant", participant.Token, "name", name)
	}
	if role != "" {
		participant.CreativeRole = role
		es.log.Info("Extracted creative role", "pass", pass, "participant", participant.Token, "role", role)
	}
}

func parseIdentity(reply string) (*extractedIdentity, error) {
	raw, ok := llm.ExtractJSONObject(reply)
	if !ok {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	var identity extractedIdentity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	return &identity, nil
}

// cleanField trims and truncates an extracted value. Values of one character
// or less are dropped, as is the literal "null".
func cleanField(value *string, max int) string {
	if value == nil {
		return ""
	}
	v := strings.TrimSpace(*value)
	if strings.EqualFold(v, "null") {
		return ""
	}
	if r := []rune(v); len(r) > max {
		v = strings.TrimSpace(string(r[:max]))
	}
	if len([]rune(v)) <= 1 {
		return ""
	}
	return v
}
