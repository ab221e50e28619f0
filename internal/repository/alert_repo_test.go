package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/repository"
	"sphincs.io/sphincs/internal/testutil"
)

var baseTime = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// eachBackend runs fn against SQLite, and against PostgreSQL when
// TEST_DATABASE_URL is set.
func eachBackend(t *testing.T, fn func(t *testing.T, db *sqlx.DB)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, testutil.OpenSQLite(t))
	})
	t.Run("postgres", func(t *testing.T) {
		db, _ := testutil.OpenPostgres(t, t.Name())
		fn(t, db)
	})
}

func insertAlert(t *testing.T, repo *repository.AlertRepository, a domain.Alert) domain.Alert {
	t.Helper()
	if a.Severity == "" {
		a.Severity = domain.SeverityWarning
	}
	if a.TriggeredAt.IsZero() {
		a.TriggeredAt = baseTime
	}
	require.NoError(t, repo.Insert(context.Background(), &a))
	require.NotZero(t, a.ID)
	return a
}

func TestMigrate_Idempotent(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		ctx := context.Background()
		require.NoError(t, repository.Migrate(ctx, db))

		v, err := repository.SchemaVersion(ctx, db)
		require.NoError(t, err)
		require.Equal(t, 3, v)
	})
}

func TestAlertRepository_InsertAndGet(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		repo := repository.NewAlertRepository(db)
		ctx := context.Background()
		user := int64(3)

		a := insertAlert(t, repo, domain.Alert{
			Module:         domain.ModuleInventory,
			Title:          "Low stock: Flour",
			Message:        "Flour is at 5 kg (reorder level 10 kg)",
			Severity:       domain.SeverityWarning,
			Source:         &domain.Source{Type: domain.SourceInventoryLow, ID: 42},
			Payload:        map[string]any{"item_id": float64(42), "unit": "kg"},
			NotifiedUserID: &user,
		})

		got, err := repo.Get(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, domain.ModuleInventory, got.Module)
		require.Equal(t, "Low stock: Flour", got.Title)
		require.Equal(t, domain.SeverityWarning, got.Severity)
		require.Equal(t, &domain.Source{Type: domain.SourceInventoryLow, ID: 42}, got.Source)
		require.Equal(t, "kg", got.Payload["unit"])
		require.True(t, got.TriggeredAt.Equal(baseTime), "triggered_at = %v", got.TriggeredAt)
		require.False(t, got.IsRead)
		require.Nil(t, got.ReadAt)
		require.NotNil(t, got.NotifiedUserID)
		require.Equal(t, user, *got.NotifiedUserID)

		_, err = repo.Get(ctx, a.ID+100)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestAlertRepository_FindUnreadBySource(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		repo := repository.NewAlertRepository(db)
		ctx := context.Background()
		src := &domain.Source{Type: domain.SourceInventoryLow, ID: 7}

		none, err := repo.FindUnreadBySource(ctx, domain.ModuleInventory, src.Type, src.ID)
		require.NoError(t, err)
		require.Nil(t, none)

		a := insertAlert(t, repo, domain.Alert{Module: domain.ModuleInventory, Title: "low", Source: src})

		found, err := repo.FindUnreadBySource(ctx, domain.ModuleInventory, src.Type, src.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		require.Equal(t, a.ID, found.ID)

		// Module is part of the key.
		other, err := repo.FindUnreadBySource(ctx, domain.ModuleOperations, src.Type, src.ID)
		require.NoError(t, err)
		require.Nil(t, other)

		_, _, err = repo.MarkRead(ctx, a.ID, baseTime)
		require.NoError(t, err)
		afterRead, err := repo.FindUnreadBySource(ctx, domain.ModuleInventory, src.Type, src.ID)
		require.NoError(t, err)
		require.Nil(t, afterRead, "read alerts do not count for dedup")
	})
}

func TestAlertRepository_ListRecent(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		repo := repository.NewAlertRepository(db)
		ctx := context.Background()
		user, other := int64(1), int64(2)

		oldest := insertAlert(t, repo, domain.Alert{Module: domain.ModuleSales, Title: "a", TriggeredAt: baseTime})
		mine := insertAlert(t, repo, domain.Alert{Module: domain.ModuleSales, Title: "b", TriggeredAt: baseTime.Add(time.Minute), NotifiedUserID: &user})
		theirs := insertAlert(t, repo, domain.Alert{Module: domain.ModuleSales, Title: "c", TriggeredAt: baseTime.Add(2 * time.Minute), NotifiedUserID: &other})

		all, err := repo.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, []int64{theirs.ID, mine.ID, oldest.ID}, alertIDs(all))

		limited, err := repo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, []int64{theirs.ID, mine.ID}, alertIDs(limited))

		forUser, err := repo.ListRecentForUser(ctx, user, 10)
		require.NoError(t, err)
		require.Equal(t, []int64{mine.ID, oldest.ID}, alertIDs(forUser))
	})
}

func TestAlertRepository_MarkRead(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		repo := repository.NewAlertRepository(db)
		ctx := context.Background()
		a := insertAlert(t, repo, domain.Alert{Module: domain.ModuleSystem, Title: "x"})

		changed, found, err := repo.MarkRead(ctx, a.ID, baseTime.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, changed)
		require.True(t, found)

		changed, found, err = repo.MarkRead(ctx, a.ID, baseTime.Add(2*time.Hour))
		require.NoError(t, err)
		require.False(t, changed)
		require.True(t, found)

		got, err := repo.Get(ctx, a.ID)
		require.NoError(t, err)
		require.True(t, got.IsRead)
		require.NotNil(t, got.ReadAt)
		require.True(t, got.ReadAt.Equal(baseTime.Add(time.Hour)), "second mark-read must not move read_at")

		changed, found, err = repo.MarkRead(ctx, 9999, baseTime)
		require.NoError(t, err)
		require.False(t, changed)
		require.False(t, found)
	})
}

func TestAlertRepository_BulkUpdates(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		repo := repository.NewAlertRepository(db)
		ctx := context.Background()

		a := insertAlert(t, repo, domain.Alert{Module: domain.ModulePOS, Title: "a"})
		b := insertAlert(t, repo, domain.Alert{Module: domain.ModulePOS, Title: "b"})
		insertAlert(t, repo, domain.Alert{Module: domain.ModulePOS, Title: "c"})

		unread, err := repo.CountUnread(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, unread)

		n, err := repo.MarkManyRead(ctx, []int64{a.ID, b.ID, 9999}, baseTime)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		n, err = repo.MarkManyRead(ctx, []int64{a.ID, b.ID}, baseTime)
		require.NoError(t, err)
		require.Equal(t, 0, n)

		n, err = repo.MarkManyRead(ctx, nil, baseTime)
		require.NoError(t, err)
		require.Equal(t, 0, n)

		n, err = repo.MarkAllRead(ctx, baseTime)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		unread, err = repo.CountUnread(ctx)
		require.NoError(t, err)
		require.Zero(t, unread)
	})
}

func TestAlertRepository_MarkManyReadLargeBatch(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		repo := repository.NewAlertRepository(db)
		ctx := context.Background()

		a := insertAlert(t, repo, domain.Alert{Module: domain.ModuleSales, Title: "a"})
		b := insertAlert(t, repo, domain.Alert{Module: domain.ModuleSales, Title: "b"})
		insertAlert(t, repo, domain.Alert{Module: domain.ModuleSales, Title: "c"})

		// a leads the first statement, b closes the third; a repeats in the second.
		ids := []int64{a.ID}
		for i := range int64(1200) {
			ids = append(ids, 100000+i)
		}
		ids[700] = a.ID
		ids = append(ids, b.ID)

		n, err := repo.MarkManyRead(ctx, ids, baseTime)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		unread, err := repo.CountUnread(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, unread)
	})
}

func TestAlertRepository_ResolveBySource(t *testing.T) {
	eachBackend(t, func(t *testing.T, db *sqlx.DB) {
		repo := repository.NewAlertRepository(db)
		ctx := context.Background()
		src := &domain.Source{Type: domain.SourceSafetyIncident, ID: 5}

		n, err := repo.ResolveBySource(ctx, src.Type, src.ID, baseTime)
		require.NoError(t, err)
		require.Zero(t, n)

		// Two unread rows for one source (the tolerated race) both resolve.
		insertAlert(t, repo, domain.Alert{Module: domain.ModuleSafety, Title: "a", Source: src})
		insertAlert(t, repo, domain.Alert{Module: domain.ModuleSafety, Title: "b", Source: src})
		insertAlert(t, repo, domain.Alert{Module: domain.ModuleSafety, Title: "c",
			Source: &domain.Source{Type: domain.SourceSafetyIncident, ID: 6}})

		ids, err := repo.UnreadSourceIDs(ctx, domain.SourceSafetyIncident)
		require.NoError(t, err)
		require.Equal(t, []int64{5, 6}, ids)

		n, err = repo.ResolveBySource(ctx, src.Type, src.ID, baseTime)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		ids, err = repo.UnreadSourceIDs(ctx, domain.SourceSafetyIncident)
		require.NoError(t, err)
		require.Equal(t, []int64{6}, ids)
	})
}

func alertIDs(alerts []domain.Alert) []int64 {
	out := make([]int64, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.ID)
	}
	return out
}
