package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/object-counter/internal/detection"
	"github.com/ironsheep/object-counter/internal/imaging"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "counter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Migrates(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, s.MigrateUp())
	require.NoError(t, s.Ping(context.Background()))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	rec := &CountRecord{Source: "first", Width: 1, Height: 1, Count: 3}
	require.NoError(t, s.RecordCount(ctx, rec))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetCount(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)
}

func TestRecordAndGetCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cfg := detection.Config{Threshold: 90, Polarity: imaging.PolarityBright, MinArea: 2, MaxArea: 400, SmartMode: true}
	res := &detection.CountResult{
		Count:  2,
		Blobs:  []detection.Blob{{Area: 10}, {Area: 30}},
		Width:  320,
		Height: 240,
	}
	rec := NewCountRecord("CAPTURE_1.png", cfg, res)
	rec.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordCount(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := s.GetCount(ctx, rec.ID)
	require.NoError(t, err)

	want := &CountRecord{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Source:    "CAPTURE_1.png",
		Width:     320,
		Height:    240,
		Count:     2,
		SmartMode: true,
		Threshold: 90,
		Polarity:  "bright",
		MinArea:   2,
		MaxArea:   400,
		Sizes:     []int{10, 30},
		MeanArea:  20,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordCount_EmptySizes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &CountRecord{Source: "empty", Width: 10, Height: 10}
	require.NoError(t, s.RecordCount(ctx, rec))

	got, err := s.GetCount(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{}, got.Sizes)
	assert.Equal(t, 0, got.Count)
	assert.Equal(t, "dark", got.Polarity)
}

func TestListCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := &CountRecord{Count: i, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.RecordCount(ctx, rec))
	}

	recs, err := s.ListCounts(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []int{4, 3, 2}, []int{recs[0].Count, recs[1].Count, recs[2].Count}, "newest first")

	all, err := s.ListCounts(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestListCounts_Empty(t *testing.T) {
	s := openTestStore(t)

	recs, err := s.ListCounts(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestGetCount_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetCount(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &CountRecord{Count: 7}
	require.NoError(t, s.RecordCount(ctx, rec))

	require.NoError(t, s.DeleteCount(ctx, rec.ID))
	_, err := s.GetCount(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteCount(ctx, rec.ID), ErrNotFound)
}

func TestRecordCount_Concurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func(n int) {
			errs <- s.RecordCount(ctx, &CountRecord{Count: n})
		}(i)
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-errs)
	}

	recs, err := s.ListCounts(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, recs, 20)
}
