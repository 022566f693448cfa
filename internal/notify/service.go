package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/solterra/solterra/internal/shared"
)

// RepositoryPort defines data access methods for notifications.
type RepositoryPort interface {
	Insert(ctx context.Context, n Notification) (*Notification, error)
	ListForClient(ctx context.Context, clientID string, onlyUnread bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, clientID, id string) error
	ClientContact(ctx context.Context, clientID string) (name, email string, err error)
	OwnerOfLot(ctx context.Context, clientLotID string) (string, error)
}

// MailEnqueuerPort hands an email off to the background worker.
type MailEnqueuerPort interface {
	EnqueueMail(ctx context.Context, to, subject, body string) error
}

// Service creates notifications and dispatches their emails. All delivery is
// best effort; callers treat errors as warnings.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	mail   MailEnqueuerPort
	brl    *message.Printer
}

// NewService builds a Service instance. mail may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, mail MailEnqueuerPort) *Service {
	return &Service{
		logger: logger,
		repo:   repo,
		mail:   mail,
		brl:    message.NewPrinter(language.BrazilianPortuguese),
	}
}

func (s *Service) formatBRL(amount decimal.Decimal) string {
	f, _ := amount.Float64()
	return s.brl.Sprintf("R$ %v", number.Decimal(f, number.Scale(2)))
}

// PaymentOverdue records an overdue notice for the owner of a sold lot and
// queues the email.
func (s *Service) PaymentOverdue(ctx context.Context, clientLotID string, amount decimal.Decimal, dueDate time.Time) error {
	clientID, err := s.repo.OwnerOfLot(ctx, clientLotID)
	if err != nil {
		return err
	}
	name, email, err := s.repo.ClientContact(ctx, clientID)
	if err != nil {
		return err
	}

	value := s.formatBRL(amount)
	notification := Notification{
		ClientID: clientID,
		Type:     TypePaymentOverdue,
		Title:    "Pagamento em Atraso",
		Message: fmt.Sprintf("A parcela de %s vencida em %s está em atraso. Regularize sua situação o mais breve possível.",
			value, dueDate.Format("02/01/2006")),
	}
	if _, err := s.repo.Insert(ctx, notification); err != nil {
		return err
	}

	s.enqueueMail(ctx, email,
		"Aviso de Pagamento em Atraso",
		fmt.Sprintf("Olá %s,\n\nIdentificamos que você possui um pagamento em atraso.\n\nValor em atraso: %s\nVencimento: %s\n\nPor favor, regularize sua situação o mais breve possível.\n\nAtenciosamente,\nEquipe de Cobrança",
			name, value, dueDate.Format("02/01/2006")))
	return nil
}

// ServiceUpdate tells a client their service order moved.
func (s *Service) ServiceUpdate(ctx context.Context, clientID, orderID, status string) error {
	name, email, err := s.repo.ClientContact(ctx, clientID)
	if err != nil {
		return err
	}

	notification := Notification{
		ClientID: clientID,
		Type:     TypeServiceUpdate,
		Title:    "Atualização de Serviço",
		Message:  fmt.Sprintf("Sua ordem de serviço mudou para: %s.", status),
	}
	if _, err := s.repo.Insert(ctx, notification); err != nil {
		return err
	}

	s.enqueueMail(ctx, email,
		"Atualização da sua Ordem de Serviço",
		fmt.Sprintf("Olá %s,\n\nSua ordem de serviço %s foi atualizada para: %s.\n\nAtenciosamente,\nEquipe de Atendimento",
			name, orderID, status))
	return nil
}

// Announce records a general notification for one client.
func (s *Service) Announce(ctx context.Context, clientID, title, body string) (*Notification, error) {
	if title == "" || body == "" {
		return nil, fmt.Errorf("%w: title and message are required", shared.ErrValidation)
	}
	return s.repo.Insert(ctx, Notification{
		ClientID: clientID,
		Type:     TypeGeneral,
		Title:    title,
		Message:  body,
	})
}

// ListForClient returns a client's notifications.
func (s *Service) ListForClient(ctx context.Context, clientID string, onlyUnread bool) ([]Notification, error) {
	return s.repo.ListForClient(ctx, clientID, onlyUnread, 100)
}

// MarkRead flags a notification as read.
func (s *Service) MarkRead(ctx context.Context, clientID, id string) error {
	return s.repo.MarkRead(ctx, clientID, id)
}

func (s *Service) enqueueMail(ctx context.Context, to, subject, body string) {
	if s.mail == nil || to == "" {
		return
	}
	if err := s.mail.EnqueueMail(ctx, to, subject, body); err != nil {
		s.logger.Warn("mail enqueue failed", "to", to, "subject", subject, "error", err)
	}
}
