package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamenight/internal/dependencies/mocks"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/storage"
	"github.com/mcoot/gamenight/internal/storage/storagetest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	clk := mocks.NewMockClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, &storagetest.LedgerSuite{
		NewLedger: func() storage.Ledger {
			return openTempStore(t)
		},
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ", mocks.NewMockClock(time.Now()))
	require.Error(t, err)
}

func TestOpenCreatesMissingDirectories(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "nested", "gamenight.db")

	store, err := Open(ctx, path, mocks.NewMockClock(time.Now()))
	require.NoError(t, err)
	defer store.Close()

	text, err := store.GetScheduleText(ctx)
	require.NoError(t, err)
	require.Equal(t, storage.DefaultScheduleText, text)
	require.FileExists(t, path)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	clk := mocks.NewMockClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "ledger.db")

	store, err := Open(ctx, path, clk)
	require.NoError(t, err)
	require.NoError(t, store.UpsertPerson(ctx, &model.Person{ID: 42, FirstName: "A", LastName: "B", Nickname: "C", Age: 20}))
	session, err := store.CreateSession(ctx, model.KindSport, "Сб 21.02")
	require.NoError(t, err)
	require.NoError(t, store.Register(ctx, 42, session.ID))
	require.NoError(t, store.SetScheduleText(ctx, "custom"))
	require.NoError(t, store.Close())

	// Migrations are recorded, so reopening must not fail or reseed
	store, err = Open(ctx, path, clk)
	require.NoError(t, err)
	defer store.Close()

	text, err := store.GetScheduleText(ctx)
	require.NoError(t, err)
	require.Equal(t, "custom", text)

	participants, err := store.ListParticipants(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	require.Equal(t, "C", participants[0].Person.Nickname)
}

func TestClosedStoreReportsUnavailable(t *testing.T) {
	store := openTempStore(t)
	require.NoError(t, store.Close())

	_, err := store.ListSessions(context.Background(), model.FilterActive)
	require.ErrorIs(t, err, model.ErrStorageUnavailable)

	err = store.Register(context.Background(), 1, 1)
	require.ErrorIs(t, err, model.ErrStorageUnavailable)
}

func TestUpSection(t *testing.T) {
	content := "-- comment\n-- +migrate Up\nCREATE TABLE a (id INTEGER);\n-- +migrate Down\nDROP TABLE a;\n"
	require.Equal(t, "\nCREATE TABLE a (id INTEGER);\n", upSection(content))
	require.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}
