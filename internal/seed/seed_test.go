package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/slotter-org/cocreation-backend/internal/db"
	"github.com/slotter-org/cocreation-backend/internal/logger"
	"github.com/slotter-org/cocreation-backend/internal/repos"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	svc, err := db.NewSQLiteService(filepath.Join(t.TempDir(), "seed.db"), logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.AutoMigrateAll())
	t.Cleanup(func() {
		if sqlDB, err := svc.DB().DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return svc.DB()
}

func TestLoadRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"token": "t1", "name": "Ann", "creative_role": "painter", "needs_summary": "wants feedback"},
		{"token": "t2", "name": "Ben", "creative_role": "poet"}
	]`), 0o600))

	entries, err := LoadRoster(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "painter", entries[0].CreativeRole)
	assert.Equal(t, "", entries[1].NeedsSummary)
}

func TestLoadRosterMissingFile(t *testing.T) {
	_, err := LoadRoster(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSyncRosterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	log := logger.NewNop()
	participantRepo := repos.NewParticipantRepo(gdb, log)
	profileRepo := repos.NewProfileRepo(gdb, log)
	entries := []RosterEntry{
		{Token: "t1", Name: "Ann", CreativeRole: "painter", NeedsSummary: "wants feedback"},
		{Token: "t2", Name: "Ben", CreativeRole: "poet"},
		{Token: "t3", Name: "Cai", CreativeRole: "dancer"},
	}

	created, err := SyncRoster(ctx, gdb, log, participantRepo, profileRepo, entries, "S1")
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	created, err = SyncRoster(ctx, gdb, log, participantRepo, profileRepo, entries, "S2")
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	eligible, err := participantRepo.ListEligible(ctx, nil, "S1")
	require.NoError(t, err)
	assert.Len(t, eligible, 3)

	p, err := participantRepo.GetByToken(ctx, nil, "t1")
	require.NoError(t, err)
	profile, err := profileRepo.GetByParticipantID(ctx, nil, p.ID)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "wants feedback", profile.NeedsSummary)
}

func TestSyncRosterRejectsMissingToken(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	log := logger.NewNop()
	participantRepo := repos.NewParticipantRepo(gdb, log)

	_, err := SyncRoster(ctx, gdb, log, participantRepo, repos.NewProfileRepo(gdb, log), []RosterEntry{
		{Token: "ok", Name: "Ann", CreativeRole: "painter"},
		{Token: "  ", Name: "Ghost"},
	}, "")
	require.Error(t, err)

	all, err := participantRepo.ListAll(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}
