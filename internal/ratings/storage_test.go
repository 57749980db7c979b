package ratings_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"festival-tickets/internal/models"
	"festival-tickets/internal/ratings"
)

func setupStorage(t *testing.T) *ratings.Storage {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, bunDB.ResetModel(context.Background(), (*models.Rating)(nil)))

	t.Cleanup(func() { bunDB.Close() })
	return ratings.NewStorage(bunDB)
}

func TestUpsertReplacesEarlierRating(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	first, err := store.Upsert(ctx, "a@example.com", "32 Meters", 3, "decent")
	require.NoError(t, err)

	second, err := store.Upsert(ctx, "a@example.com", "32 Meters", 5, "grew on me")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := store.ListByAct(ctx, "32 Meters")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].Rating)
	assert.Equal(t, "grew on me", list[0].Comment)
}

func TestAverage(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "a@example.com", "32 Meters", 4, "")
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "b@example.com", "32 Meters", 2, "")
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "c@example.com", "Other Act", 5, "")
	require.NoError(t, err)

	avg, err := store.Average(ctx, "32 Meters")
	require.NoError(t, err)
	assert.Equal(t, 2, avg.Count)
	assert.InDelta(t, 3.0, avg.Average, 0.001)

	empty, err := store.Average(ctx, "Unrated Act")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Count)
	assert.Equal(t, 0.0, empty.Average)
}

func TestDeleteOwnRating(t *testing.T) {
	store := setupStorage(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "a@example.com", "32 Meters", 4, "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "a@example.com", "32 Meters"))

	err = store.Delete(ctx, "a@example.com", "32 Meters")
	assert.ErrorIs(t, err, ratings.ErrRatingNotFound)
}

func TestServiceValidation(t *testing.T) {
	store := setupStorage(t)
	svc := ratings.NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Rate(ctx, "a@example.com", "32 Meters", 0, "")
	var verr *ratings.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Rate(ctx, "a@example.com", "", 3, "")
	assert.ErrorAs(t, err, &verr)

	rating, err := svc.Rate(ctx, "a@example.com", "32 Meters", 5, "superb")
	require.NoError(t, err)
	assert.Equal(t, 5, rating.Rating)

	list, avg, err := svc.ActRatings(ctx, "32 Meters")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, avg.Count)
}
