package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solterra/solterra/internal/shared"
)

type memoryNotifyRepo struct {
	notifications []Notification
	owners        map[string]string
	contacts      map[string][2]string
}

func newMemoryNotifyRepo() *memoryNotifyRepo {
	return &memoryNotifyRepo{
		owners:   map[string]string{"cl_001": "client_1"},
		contacts: map[string][2]string{"client_1": {"Maria Souza", "maria@example.com"}},
	}
}

func (r *memoryNotifyRepo) Insert(_ context.Context, n Notification) (*Notification, error) {
	n.ID = fmt.Sprintf("ntf_%03d", len(r.notifications)+1)
	r.notifications = append(r.notifications, n)
	return &n, nil
}

func (r *memoryNotifyRepo) ListForClient(_ context.Context, clientID string, onlyUnread bool, _ int) ([]Notification, error) {
	var out []Notification
	for _, n := range r.notifications {
		if n.ClientID == clientID && (!onlyUnread || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memoryNotifyRepo) MarkRead(_ context.Context, clientID, id string) error {
	for i, n := range r.notifications {
		if n.ID == id && n.ClientID == clientID {
			r.notifications[i].IsRead = true
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryNotifyRepo) ClientContact(_ context.Context, clientID string) (string, string, error) {
	c, ok := r.contacts[clientID]
	if !ok {
		return "", "", shared.ErrNotFound
	}
	return c[0], c[1], nil
}

func (r *memoryNotifyRepo) OwnerOfLot(_ context.Context, clientLotID string) (string, error) {
	owner, ok := r.owners[clientLotID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return owner, nil
}

type fakeMailer struct {
	sent []string
}

func (m *fakeMailer) EnqueueMail(_ context.Context, to, subject, _ string) error {
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func TestPaymentOverdueRecordsAndMails(t *testing.T) {
	repo := newMemoryNotifyRepo()
	mailer := &fakeMailer{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, mailer)

	err := svc.PaymentOverdue(context.Background(), "cl_001",
		decimal.NewFromFloat(1234.50), time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, repo.notifications, 1)
	n := repo.notifications[0]
	require.Equal(t, "client_1", n.ClientID)
	require.Equal(t, TypePaymentOverdue, n.Type)
	require.Contains(t, n.Message, "15/05/2024")
	require.Contains(t, n.Message, "1.234,50", "amounts are formatted for pt-BR")

	require.Equal(t, []string{"maria@example.com|Aviso de Pagamento em Atraso"}, mailer.sent)
}

func TestPaymentOverdueUnknownLot(t *testing.T) {
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), newMemoryNotifyRepo(), &fakeMailer{})

	err := svc.PaymentOverdue(context.Background(), "cl_missing", decimal.NewFromInt(100), time.Now())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceUpdateNotifies(t *testing.T) {
	repo := newMemoryNotifyRepo()
	mailer := &fakeMailer{}
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, mailer)

	err := svc.ServiceUpdate(context.Background(), "client_1", "order_001", "approved")
	require.NoError(t, err)
	require.Len(t, repo.notifications, 1)
	require.Equal(t, TypeServiceUpdate, repo.notifications[0].Type)
	require.True(t, strings.Contains(repo.notifications[0].Message, "approved"))
	require.Len(t, mailer.sent, 1)
}

func TestMarkReadScopedToOwner(t *testing.T) {
	repo := newMemoryNotifyRepo()
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, nil)

	n, err := svc.Announce(context.Background(), "client_1", "Aviso", "Manutenção programada.")
	require.NoError(t, err)

	require.ErrorIs(t, svc.MarkRead(context.Background(), "client_2", n.ID), shared.ErrNotFound)
	require.NoError(t, svc.MarkRead(context.Background(), "client_1", n.ID))

	unread, err := svc.ListForClient(context.Background(), "client_1", true)
	require.NoError(t, err)
	require.Empty(t, unread)
}
