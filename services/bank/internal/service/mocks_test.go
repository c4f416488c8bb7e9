package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"example.com/card-settlement/pkg/account"
	"example.com/card-settlement/services/bank/internal/domain"
)

// =============================================================================
// In-memory репозитории
// =============================================================================

// memoryStore хранит платежи и возвраты с теми же гарантиями, что и MySQL:
// уникальность карты, условный переход статуса, атомарная проверка суммы возвратов.
type memoryStore struct {
	mu        sync.Mutex
	payments  map[string]*domain.Payment
	cards     map[domain.CardNumber]string
	refunds   map[string]*domain.Refund
	createErr error
	updateErr map[domain.PaymentStatus]error
	updates   []domain.PaymentStatus
	reasons   []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		payments:  make(map[string]*domain.Payment),
		cards:     make(map[domain.CardNumber]string),
		refunds:   make(map[string]*domain.Refund),
		updateErr: make(map[domain.PaymentStatus]error),
	}
}

func (m *memoryStore) Create(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.cards[p.CardNumber]; ok {
		return domain.ErrCardAlreadyUsed
	}

	stored := *p
	m.payments[p.ID] = &stored
	m.cards[p.CardNumber] = p.ID
	return nil
}

func (m *memoryStore) GetByID(_ context.Context, id string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memoryStore) UpdateStatus(_ context.Context, p *domain.Payment, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.updateErr[p.Status]; err != nil {
		return err
	}

	stored, ok := m.payments[p.ID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	allowed := false
	for _, from := range domain.AllowedFrom(p.Status) {
		if stored.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return domain.ErrInvalidTransition
	}

	stored.Status = p.Status
	m.updates = append(m.updates, p.Status)
	m.reasons = append(m.reasons, reason)
	return nil
}

func (m *memoryStore) GetStuckProcessing(_ context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := time.Now().Add(-olderThan)
	var result []*domain.Payment
	for _, p := range m.payments {
		if p.Status == domain.PaymentStatusProcessing && p.CreatedAt.Before(threshold) && len(result) < limit {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *memoryStore) status(id string) domain.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id].Status
}

// refundStore реализует RefundRepository поверх memoryStore.
type refundStore struct {
	*memoryStore
}

func (r refundStore) Create(_ context.Context, refund *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[refund.PaymentID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if p.Status != domain.PaymentStatusApproved {
		return domain.ErrPaymentNotApproved
	}

	var refunded int64
	for _, existing := range r.refunds {
		if existing.PaymentID == refund.PaymentID {
			refunded += existing.Amount
		}
	}
	if !refund.FitsInto(p, refunded) {
		return domain.ErrExcessiveRefund
	}

	stored := *refund
	r.refunds[refund.ID] = &stored
	return nil
}

func (r refundStore) GetByID(_ context.Context, paymentID, refundID string) (*domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	refund, ok := r.refunds[refundID]
	if !ok || refund.PaymentID != paymentID {
		return nil, domain.ErrRefundNotFound
	}
	cp := *refund
	return &cp, nil
}

// =============================================================================
// Сервис счетов с управляемыми ответами
// =============================================================================

type fakeAccounts struct {
	mu          sync.Mutex
	holdErr     error
	withdrawErr error
	releaseErr  error
	holds       int
	withdrawals int
	releases    int
	lastAccount string
	onHold      func()
}

func (f *fakeAccounts) PlaceHold(_ context.Context, accountNumber string, _ int64) (account.Hold, error) {
	f.mu.Lock()
	f.holds++
	f.lastAccount = accountNumber
	hook := f.onHold
	err := f.holdErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return account.Hold{}, err
	}
	return account.NewHold(), nil
}

func (f *fakeAccounts) ReleaseHold(_ context.Context, _ account.Hold) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return f.releaseErr
}

func (f *fakeAccounts) WithdrawFunds(_ context.Context, _ account.Hold) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawals++
	return f.withdrawErr
}

func (f *fakeAccounts) calls() (holds, withdrawals, releases int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holds, f.withdrawals, f.releases
}

func accountErr(op string, code account.ErrorCode) error {
	return &account.Error{Code: code, Op: op, Err: errors.New(string(code))}
}
