package service_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldops/patrol-sync/internal/models"
	"github.com/fieldops/patrol-sync/internal/service"
	"github.com/fieldops/patrol-sync/internal/store/memory"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type onlineFlag bool

func (o onlineFlag) IsOnline() bool { return bool(o) }

// fakeUploader records every Submit call and fails the ids it is told to.
// blockUntil, when set, holds every upload open until the channel is closed.
type fakeUploader struct {
	mu         sync.Mutex
	calls      []submitCall
	failIDs    map[string]error
	blockUntil chan struct{}
	started    chan string
}

type submitCall struct {
	reportID string
	userID   string
	notes    string
	lat, lng float64
}

func (f *fakeUploader) Submit(_ context.Context, rep models.QueuedReport, userID string) error {
	if f.started != nil {
		f.started <- rep.ID
	}
	if f.blockUntil != nil {
		<-f.blockUntil
	}

	f.mu.Lock()
	f.calls = append(f.calls, submitCall{
		reportID: rep.ID,
		userID:   userID,
		notes:    rep.Notes,
		lat:      rep.Latitude,
		lng:      rep.Longitude,
	})
	f.mu.Unlock()

	if err, ok := f.failIDs[rep.ID]; ok {
		return err
	}
	return nil
}

func (f *fakeUploader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeUploader) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.reportID == id {
			n++
		}
	}
	return n
}

func enqueue(t *testing.T, q *memory.Store, submitter, notes string) string {
	t.Helper()
	id, err := q.Enqueue(context.Background(), models.QueuedReportInput{
		SubmitterID: submitter,
		UnitID:      "unit-1",
		CategoryID:  "cat-1",
		LocationID:  "loc-1",
		ImageData:   "aW1hZ2U=",
		Notes:       notes,
		Latitude:    -4.0428,
		Longitude:   122.5278,
		CapturedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func TestOfflineTriggerIsNoop(t *testing.T) {
	ctx := context.Background()
	queue := memory.New()
	enqueue(t, queue, "u1", "stays put")

	up := &fakeUploader{}
	eng := service.NewEngine(queue, up, onlineFlag(false), service.StaticIdentity("u1"), discard())

	require.True(t, eng.Trigger(ctx))

	require.Zero(t, up.callCount(), "offline drain must make zero network calls")
	n, err := queue.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestPerRecordIsolation(t *testing.T) {
	ctx := context.Background()
	queue := memory.New()

	id1 := enqueue(t, queue, "u1", "one")
	id2 := enqueue(t, queue, "u1", "two")
	id3 := enqueue(t, queue, "u1", "three")

	up := &fakeUploader{failIDs: map[string]error{
		id2: errors.New("simulated 500"),
	}}
	eng := service.NewEngine(queue, up, onlineFlag(true), service.StaticIdentity("u1"), discard())

	require.True(t, eng.Trigger(ctx))

	// All three were attempted; only the failure stays queued.
	require.Equal(t, 1, up.callsFor(id1))
	require.Equal(t, 1, up.callsFor(id2))
	require.Equal(t, 1, up.callsFor(id3))

	reports, err := queue.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, id2, reports[0].ID)
}

func TestNoPrematureDelete(t *testing.T) {
	ctx := context.Background()
	queue := memory.New()
	id := enqueue(t, queue, "u1", "flaky network")

	up := &fakeUploader{failIDs: map[string]error{
		id: errors.New("connection reset before response"),
	}}
	eng := service.NewEngine(queue, up, onlineFlag(true), service.StaticIdentity("u1"), discard())

	require.True(t, eng.Trigger(ctx))

	reports, err := queue.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1, "a report must never be deleted without confirmed success")
	require.Equal(t, id, reports[0].ID)
}

func TestAtMostOneConcurrentDrain(t *testing.T) {
	ctx := context.Background()
	queue := memory.New()
	id := enqueue(t, queue, "u1", "slow upload")

	release := make(chan struct{})
	started := make(chan string, 1)
	up := &fakeUploader{blockUntil: release, started: started}
	eng := service.NewEngine(queue, up, onlineFlag(true), service.StaticIdentity("u1"), discard())

	done := make(chan bool, 1)
	go func() { done <- eng.Trigger(ctx) }()

	// First drain is mid-upload now.
	require.Equal(t, id, <-started)
	require.True(t, eng.IsSyncing())

	// Second trigger while draining must be a no-op.
	require.False(t, eng.Trigger(ctx))

	close(release)
	require.True(t, <-done)
	require.False(t, eng.IsSyncing())

	require.Equal(t, 1, up.callsFor(id), "exactly one network call per queued record")

	n, err := queue.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

// failingDeleteQueue simulates local store failure after the server already
// accepted the report.
type failingDeleteQueue struct {
	*memory.Store
}

func (q failingDeleteQueue) DeleteByID(context.Context, string) error {
	return errors.New("disk full")
}

func TestDeleteFailureKeepsRecordQueued(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	id := enqueue(t, inner, "u1", "at least once")

	up := &fakeUploader{}
	eng := service.NewEngine(failingDeleteQueue{inner}, up, onlineFlag(true), service.StaticIdentity("u1"), discard())

	require.True(t, eng.Trigger(ctx))

	// Delivered, but still queued: duplicate on the next cycle beats loss.
	require.Equal(t, 1, up.callsFor(id))
	n, err := inner.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSessionIdentityWinsOverStoredSubmitter(t *testing.T) {
	ctx := context.Background()
	queue := memory.New()
	enqueue(t, queue, "alice", "captured by alice")

	up := &fakeUploader{}
	eng := service.NewEngine(queue, up, onlineFlag(true), service.StaticIdentity("bob"), discard())

	require.True(t, eng.Trigger(ctx))

	require.Equal(t, 1, up.callCount())
	up.mu.Lock()
	defer up.mu.Unlock()
	require.Equal(t, "bob", up.calls[0].userID)
}

type erroringIdentity struct{}

func (erroringIdentity) CurrentUserID(context.Context) (string, error) {
	return "", errors.New("session expired")
}

func TestIdentityFailureLeavesQueueUntouched(t *testing.T) {
	ctx := context.Background()
	queue := memory.New()
	enqueue(t, queue, "u1", "no session")

	up := &fakeUploader{}
	eng := service.NewEngine(queue, up, onlineFlag(true), erroringIdentity{}, discard())

	require.True(t, eng.Trigger(ctx))

	require.Zero(t, up.callCount())
	n, err := queue.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestEmptyQueueMakesNoCalls(t *testing.T) {
	ctx := context.Background()
	up := &fakeUploader{}
	eng := service.NewEngine(memory.New(), up, onlineFlag(true), service.StaticIdentity("u1"), discard())

	require.True(t, eng.Trigger(ctx))
	require.Zero(t, up.callCount())
	require.False(t, eng.IsSyncing())
}
