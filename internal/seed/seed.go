package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/repos"
	"github.com/slotter-org/cocreation-backend/internal/types"
)

// RosterEntry is one participant in a rehearsal roster file.
type RosterEntry struct {
	Token        string `json:"token"`
	Name         string `json:"name"`
	CreativeRole string `json:"creative_role"`
	NeedsSummary string `json:"needs_summary"`
}

// LoadRoster reads a JSON array of roster entries.
func LoadRoster(path string) ([]RosterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading roster file: %w", err)
	}
	var entries []RosterEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed unmarshaling roster: %w", err)
	}
	return entries, nil
}

// SyncRoster makes every roster entry exist as a participant of sessionID so
// grouping and themes can be rehearsed without live onboarding chats.
// Existing participants keep their session and only get empty identity
// fields filled. Returns how many participants were created.
func SyncRoster(
	ctx context.Context,
	db *gorm.DB,
	log *logger.Logger,
	participantRepo repos.ParticipantRepo,
	profileRepo repos.ProfileRepo,
	entries []RosterEntry,
	sessionID string,
) (int, error) {
	seedLog := log.With("component", "RosterSeed")
	created := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, entry := range entries {
			token := strings.TrimSpace(entry.Token)
			if token == "" {
				return fmt.Errorf("roster entry %d has no token", i)
			}

			//1) Find or create
			participant, err := participantRepo.GetByToken(ctx, tx, token)
			if err != nil {
				return fmt.Errorf("failed fetching participant %s: %w", token, err)
			}
			if participant == nil {
				participant = &types.Participant{Token: token}
				if sessionID != "" {
					sid := sessionID
					participant.SessionID = &sid
				}
				if _, err := participantRepo.Create(ctx, tx, []*types.Participant{participant}); err != nil {
					return fmt.Errorf("failed creating participant %s: %w", token, err)
				}
				created++
			}

			//2) Identity
			if err := participantRepo.FillIdentity(ctx, tx, participant.ID, strings.TrimSpace(entry.Name), strings.TrimSpace(entry.CreativeRole)); err != nil {
				return fmt.Errorf("failed filling identity for %s: %w", token, err)
			}

			//3) Profile
			if summary := strings.TrimSpace(entry.NeedsSummary); summary != "" {
				profile := &types.ParticipantProfile{ParticipantID: participant.ID, NeedsSummary: summary}
				if err := profileRepo.Upsert(ctx, tx, profile, true); err != nil {
					return fmt.Errorf("failed saving profile for %s: %w", token, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		seedLog.Error("Roster sync failed :(", "error", err)
		return 0, err
	}
	seedLog.Info("Roster sync complete :)", "entries", len(entries), "created", created, "sessionID", sessionID)
	return created, nil
}
