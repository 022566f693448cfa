package billing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra/internal/gateway"
)

type fakeGateway struct {
	calls  []gateway.CreatePaymentInput
	failOn map[int]error
}

func (g *fakeGateway) CreatePayment(_ context.Context, input gateway.CreatePaymentInput) (*gateway.Payment, error) {
	g.calls = append(g.calls, input)
	if err, ok := g.failOn[len(g.calls)]; ok {
		return nil, err
	}
	id := fmt.Sprintf("pay_%03d", len(g.calls))
	return &gateway.Payment{
		ID:          id,
		BankSlipURL: "https://gw.example/boleto/" + id,
		InvoiceURL:  "https://gw.example/i/" + id,
	}, nil
}

type memoryIssuerStore struct {
	invoices []Invoice
	outbox   []OutboxEntry

	invoiceErr error
}

func (s *memoryIssuerStore) CreateInvoice(_ context.Context, inv Invoice) (*Invoice, error) {
	if s.invoiceErr != nil {
		return nil, s.invoiceErr
	}
	inv.ID = fmt.Sprintf("inv_%03d", len(s.invoices)+1)
	s.invoices = append(s.invoices, inv)
	return &inv, nil
}

func (s *memoryIssuerStore) EnqueueOutbox(_ context.Context, entry OutboxEntry) error {
	s.outbox = append(s.outbox, entry)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSale() SaleRef {
	return SaleRef{
		ClientLotID:     "cl_001",
		CustomerRef:     "cus_123",
		DevelopmentName: "Jardim das Acácias",
		LotNumber:       "12",
	}
}

func twelveSpecs(t *testing.T) []InstallmentSpec {
	t.Helper()
	specs, err := GenerateSchedule(decimal.NewFromInt(12000), 12, date(2024, time.January, 15))
	require.NoError(t, err)
	return specs
}

func TestIssueCreatesOneInvoicePerInstallment(t *testing.T) {
	gw := &fakeGateway{}
	store := &memoryIssuerStore{}
	issuer := NewIssuer(testLogger(), gw, store, nil)

	report := issuer.Issue(context.Background(), testSale(), twelveSpecs(t))

	require.Equal(t, 12, report.Issued)
	require.Empty(t, report.Deferred)
	require.Len(t, store.invoices, 12)

	first := store.invoices[0]
	require.Equal(t, InvoiceStatusPending, first.Status)
	require.Equal(t, 1, first.InstallmentNumber)
	require.NotNil(t, first.RemotePaymentID)
	require.NotNil(t, first.Barcode)
	require.NotNil(t, first.PaymentURL)
	require.True(t, first.Amount.Equal(decimal.NewFromInt(1000)))

	require.Equal(t, "Jardim das Acácias - Lote 12 - Parcela 1/12", gw.calls[0].Description)
	require.Equal(t, "Jardim das Acácias - Lote 12 - Parcela 12/12", gw.calls[11].Description)
	require.Equal(t, "cl_001", gw.calls[0].ExternalReference)
}

func TestIssueSkipsFailedInstallmentAndContinues(t *testing.T) {
	gw := &fakeGateway{failOn: map[int]error{5: gateway.ErrUnavailable}}
	store := &memoryIssuerStore{}
	issuer := NewIssuer(testLogger(), gw, store, nil)

	report := issuer.Issue(context.Background(), testSale(), twelveSpecs(t))

	require.Equal(t, 11, report.Issued)
	require.Equal(t, []int{5}, report.Deferred)
	require.Len(t, gw.calls, 12, "remaining installments are still attempted")
	require.Len(t, store.invoices, 11)
	for _, inv := range store.invoices {
		require.NotEqual(t, 5, inv.InstallmentNumber)
	}

	require.Len(t, store.outbox, 1)
	entry := store.outbox[0]
	require.Equal(t, 5, entry.InstallmentNumber)
	require.Equal(t, "cl_001", entry.ClientLotID)
	require.Equal(t, "cus_123", entry.CustomerRef)
	require.Equal(t, 1, entry.Attempts)
	require.True(t, entry.Amount.Equal(decimal.NewFromInt(1000)))
}

func TestIssueWithoutCustomerDefersEverything(t *testing.T) {
	gw := &fakeGateway{}
	store := &memoryIssuerStore{}
	issuer := NewIssuer(testLogger(), gw, store, nil)

	sale := testSale()
	sale.CustomerRef = ""
	report := issuer.Issue(context.Background(), sale, twelveSpecs(t))

	require.Zero(t, report.Issued)
	require.Len(t, report.Deferred, 12)
	require.Empty(t, gw.calls)
	require.Len(t, store.outbox, 12)
}

func TestRetrierDrainsOutbox(t *testing.T) {
	gw := &fakeGateway{}
	store := &memoryRetrierStore{
		pending: []OutboxEntry{
			{ID: 1, ClientLotID: "cl_001", InstallmentNumber: 5, Amount: decimal.NewFromInt(1000), DueDate: date(2024, time.May, 15), Description: "Jardim das Acácias - Lote 12 - Parcela 5/12", CustomerRef: "cus_123", Attempts: 1},
			{ID: 2, ClientLotID: "cl_002", InstallmentNumber: 1, Amount: decimal.NewFromInt(500), DueDate: date(2024, time.June, 1), Description: "Vale Verde - Lote 3 - Parcela 1/24"},
		},
		refs: map[string]string{"cl_002": ""},
	}
	retrier := NewRetrier(testLogger(), gw, store)

	report, err := retrier.Drain(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, 1, report.Settled)
	require.Equal(t, 1, report.Skipped)
	require.Zero(t, report.Failed)

	require.Len(t, store.invoices, 1)
	require.Equal(t, 5, store.invoices[0].InstallmentNumber)
	require.Equal(t, []int64{1}, store.settled)
}

func TestRetrierRecordsFailures(t *testing.T) {
	gw := &fakeGateway{failOn: map[int]error{1: gateway.ErrUnavailable}}
	store := &memoryRetrierStore{
		pending: []OutboxEntry{
			{ID: 7, ClientLotID: "cl_001", InstallmentNumber: 2, Amount: decimal.NewFromInt(250), DueDate: date(2024, time.July, 1), CustomerRef: "cus_123", Attempts: 3},
		},
	}
	retrier := NewRetrier(testLogger(), gw, store)

	report, err := retrier.Drain(context.Background(), 50)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Empty(t, store.settled)
	require.Equal(t, map[int64]string{7: gateway.ErrUnavailable.Error()}, store.failures)
}

type memoryRetrierStore struct {
	memoryIssuerStore
	pending  []OutboxEntry
	refs     map[string]string
	settled  []int64
	failures map[int64]string
}

func (s *memoryRetrierStore) ListPendingOutbox(_ context.Context, limit int) ([]OutboxEntry, error) {
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *memoryRetrierStore) SettleOutbox(_ context.Context, id int64) error {
	s.settled = append(s.settled, id)
	return nil
}

func (s *memoryRetrierStore) RecordOutboxFailure(_ context.Context, id int64, lastError string) error {
	if s.failures == nil {
		s.failures = map[int64]string{}
	}
	s.failures[id] = lastError
	return nil
}

func (s *memoryRetrierStore) ResolveCustomerRef(_ context.Context, clientLotID string) (string, error) {
	return s.refs[clientLotID], nil
}
