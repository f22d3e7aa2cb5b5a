package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/patrol-sync/internal/models"
	"github.com/fieldops/patrol-sync/internal/store/sqlite"
)

func testInput(notes string) models.QueuedReportInput {
	return models.QueuedReportInput{
		SubmitterID: "user-7",
		UnitID:      "unit-3",
		CategoryID:  "cat-spill",
		LocationID:  "loc-12",
		ImageData:   "aGVsbG8gY2FtZXJh", // "hello camera"
		Notes:       notes,
		Latitude:    -4.0428,
		Longitude:   122.5278,
		CapturedAt:  time.UnixMilli(1717000000000).UTC(),
	}
}

func openTestStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queue.db")
	s, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestEnqueueListRoundtrip(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	in := testInput("oli tumpah")
	id, err := s.Enqueue(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	reports, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	got := reports[0]
	require.Equal(t, id, got.ID)
	require.Equal(t, in.SubmitterID, got.SubmitterID)
	require.Equal(t, in.UnitID, got.UnitID)
	require.Equal(t, in.CategoryID, got.CategoryID)
	require.Equal(t, in.LocationID, got.LocationID)
	require.Equal(t, in.ImageData, got.ImageData)
	require.Equal(t, in.Notes, got.Notes)
	require.Equal(t, in.Latitude, got.Latitude)
	require.Equal(t, in.Longitude, got.Longitude)
	require.True(t, got.CapturedAt.Equal(in.CapturedAt), "capture time must be preserved as stored")
	require.False(t, got.CreatedAt.IsZero())
}

func TestDurabilityAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	s, err := sqlite.Open(ctx, path)
	require.NoError(t, err)

	in := testInput("gerbang timur rusak")
	id, err := s.Enqueue(ctx, in)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Simulated process restart: same file, fresh handle.
	s2, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	reports, err := s2.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, id, reports[0].ID)
	require.Equal(t, in.Notes, reports[0].Notes)
	require.Equal(t, in.ImageData, reports[0].ImageData)
	require.True(t, reports[0].CapturedAt.Equal(in.CapturedAt))
}

func TestDeleteByIDIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	id, err := s.Enqueue(ctx, testInput("a"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteByID(ctx, id))
	// Already gone: still not an error, queue unchanged.
	require.NoError(t, s.DeleteByID(ctx, id))
	require.NoError(t, s.DeleteByID(ctx, "never-existed"))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestListAllInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	var ids []string
	for _, notes := range []string{"first", "second", "third"} {
		id, err := s.Enqueue(ctx, testInput(notes))
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond) // distinct created_at_ms
	}

	reports, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for i, rep := range reports {
		require.Equal(t, ids[i], rep.ID)
	}
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	for range 3 {
		_, err := s.Enqueue(ctx, testInput("x"))
		require.NoError(t, err)
	}

	require.NoError(t, s.ClearAll(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	in := testInput("missing image")
	in.ImageData = ""

	_, err := s.Enqueue(ctx, in)
	require.Error(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}
