package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/storage"
)

func TestMonthlyIndexStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMonthlyIndexStore(conn)
	ctx := context.Background()

	records := []*domain.IndexMonthlyRecord{
		{
			Date:   utcDate(2020, 1, 31),
			Vwretd: ptr(0.0015),
			Vwretx: ptr(0.0011),
			Ewretd: ptr(-0.002),
			Sprtrn: ptr(-0.0016),
			Totcnt: ptr(int64(7512)),
		},
	}

	err := store.InsertBulk(ctx, records)
	require.NoError(t, err)

	got, err := store.GetByDateRange(ctx, utcDate(2020, 1, 1), utcDate(2020, 1, 31))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, utcDate(2020, 1, 31), got[0].Date.UTC())
	require.NotNil(t, got[0].Vwretd)
	assert.Equal(t, 0.0015, *got[0].Vwretd)
	require.NotNil(t, got[0].Totcnt)
	assert.Equal(t, int64(7512), *got[0].Totcnt)
	assert.Nil(t, got[0].Usdval)
}

func TestMonthlyIndexStore_InsertBulk_ReinsertReplaces(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMonthlyIndexStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.IndexMonthlyRecord{
		{Date: utcDate(2020, 1, 31), Vwretd: ptr(0.0015)},
	}))

	require.NoError(t, store.InsertBulk(ctx, []*domain.IndexMonthlyRecord{
		{Date: utcDate(2020, 1, 31), Vwretd: ptr(0.0099)},
	}))

	got, err := store.GetByDateRange(ctx, utcDate(2020, 1, 1), utcDate(2020, 1, 31))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Vwretd)
	assert.Equal(t, 0.0099, *got[0].Vwretd)
}

func TestMonthlyIndexStore_InsertBulk_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMonthlyIndexStore(conn)
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.IndexMonthlyRecord{
		{Date: utcDate(2020, 1, 31), Vwretd: ptr(0.0015)},
		{Date: utcDate(2020, 1, 31), Vwretd: ptr(0.0016)},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestMonthlyIndexStore_GetByDateRange_Ordered(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMonthlyIndexStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.IndexMonthlyRecord{
		{Date: utcDate(2020, 3, 31)},
		{Date: utcDate(2020, 1, 31)},
		{Date: utcDate(2020, 2, 29)},
	}))

	got, err := store.GetByDateRange(ctx, utcDate(2020, 1, 1), utcDate(2020, 12, 31))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Date.Before(got[1].Date))
	assert.True(t, got[1].Date.Before(got[2].Date))
}
