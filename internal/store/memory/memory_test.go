package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/patrol-sync/internal/models"
	"github.com/fieldops/patrol-sync/internal/store/memory"
)

func input(notes string) models.QueuedReportInput {
	return models.QueuedReportInput{
		SubmitterID: "u1",
		UnitID:      "unit-1",
		CategoryID:  "cat-1",
		LocationID:  "loc-1",
		ImageData:   "aW1n",
		Notes:       notes,
		Latitude:    1.5,
		Longitude:   2.5,
		CapturedAt:  time.Now().UTC(),
	}
}

func TestInsertionOrderSurvivesDeletes(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a, err := s.Enqueue(ctx, input("a"))
	require.NoError(t, err)
	b, err := s.Enqueue(ctx, input("b"))
	require.NoError(t, err)
	c, err := s.Enqueue(ctx, input("c"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteByID(ctx, b))

	reports, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, a, reports[0].ID)
	require.Equal(t, c, reports[1].ID)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	id, err := s.Enqueue(ctx, input("x"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteByID(ctx, id))
	require.NoError(t, s.DeleteByID(ctx, id))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.Enqueue(ctx, input("x"))
	require.NoError(t, err)
	require.NoError(t, s.ClearAll(ctx))

	reports, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, reports)
}
