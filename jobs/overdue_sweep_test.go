package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra/internal/billing"
)

type fakeOverdueStore struct {
	cutoff  time.Time
	flagged []billing.OverdueInvoice
	err     error
}

func (f *fakeOverdueStore) MarkOverdueBefore(_ context.Context, cutoff time.Time) ([]billing.OverdueInvoice, error) {
	f.cutoff = cutoff
	return f.flagged, f.err
}

type recordingNotifier struct {
	lots []string
	err  error
}

func (r *recordingNotifier) PaymentOverdue(_ context.Context, clientLotID string, _ decimal.Decimal, _ time.Time) error {
	r.lots = append(r.lots, clientLotID)
	return r.err
}

type recordingInvalidator struct {
	calls int
}

func (r *recordingInvalidator) Invalidate(context.Context) {
	r.calls++
}

func TestOverdueSweepNotifiesEachFlaggedInvoice(t *testing.T) {
	store := &fakeOverdueStore{flagged: []billing.OverdueInvoice{
		{ID: "inv_1", ClientLotID: "cl_001", Amount: decimal.RequireFromString("850.00"), DueDate: time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)},
		{ID: "inv_2", ClientLotID: "cl_002", Amount: decimal.RequireFromString("1200.00"), DueDate: time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC)},
	}}
	notifier := &recordingNotifier{}
	caches := &recordingInvalidator{}

	job := NewOverdueSweepJob(store, notifier, caches, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	job.clock = func() time.Time {
		return time.Date(2024, time.June, 1, 3, 12, 0, 0, time.UTC)
	}

	task, err := NewOverdueSweepTask(job.clock())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"cl_001", "cl_002"}, notifier.lots)
	require.Equal(t, 1, caches.calls)
	require.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), store.cutoff)
}

func TestOverdueSweepToleratesNotificationFailure(t *testing.T) {
	store := &fakeOverdueStore{flagged: []billing.OverdueInvoice{
		{ID: "inv_1", ClientLotID: "cl_001", Amount: decimal.RequireFromString("850.00"), DueDate: time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)},
	}}
	notifier := &recordingNotifier{err: context.DeadlineExceeded}
	caches := &recordingInvalidator{}

	job := NewOverdueSweepJob(store, notifier, caches, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	task, err := NewOverdueSweepTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, caches.calls)
}

func TestOverdueSweepNoFlaggedInvoicesSkipsInvalidation(t *testing.T) {
	store := &fakeOverdueStore{}
	caches := &recordingInvalidator{}

	job := NewOverdueSweepJob(store, &recordingNotifier{}, caches, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	task, err := NewOverdueSweepTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Zero(t, caches.calls)
}
