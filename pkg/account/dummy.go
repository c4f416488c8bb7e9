package account

import (
	"context"
	"sync"
)

// "Магические" значения DummyService.
const (
	DummyInvalidAccount     = "00"        // Счёт не существует
	DummyUnavailableAccount = "99"        // Сервис счетов недоступен
	DummyMaxAmount          = 100_000_000 // Больше этой суммы: недостаточно средств
)

// DummyService: in-process сервис счетов для разработки и тестов.
// Отказы определяются входными данными:
//   - счёт "00" → invalid_account_number
//   - счёт "99" → service_unavailable
//   - amount < 0 → invalid_amount
//   - amount > 100_000_000 → insufficient_funds
//
// Выданные резервы отслеживаются: повторное разрешение Hold отклоняется.
type DummyService struct {
	mu    sync.Mutex
	holds map[Hold]int64
}

// NewDummyService создаёт DummyService.
func NewDummyService() *DummyService {
	return &DummyService{holds: make(map[Hold]int64)}
}

// PlaceHold резервирует сумму по правилам "магических" значений.
func (d *DummyService) PlaceHold(ctx context.Context, accountNumber string, amount int64) (Hold, error) {
	if err := ctx.Err(); err != nil {
		return Hold{}, &Error{Code: CodeServiceUnavailable, Op: OpPlaceHold, Err: err}
	}

	switch {
	case accountNumber == DummyInvalidAccount:
		return Hold{}, &Error{Code: CodeInvalidAccountNumber, Op: OpPlaceHold}
	case accountNumber == DummyUnavailableAccount:
		return Hold{}, &Error{Code: CodeServiceUnavailable, Op: OpPlaceHold}
	case amount < 0:
		return Hold{}, &Error{Code: CodeInvalidAmount, Op: OpPlaceHold}
	case amount > DummyMaxAmount:
		return Hold{}, &Error{Code: CodeInsufficientFunds, Op: OpPlaceHold}
	}

	hold := NewHold()

	d.mu.Lock()
	d.holds[hold] = amount
	d.mu.Unlock()

	return hold, nil
}

// ReleaseHold снимает резерв.
func (d *DummyService) ReleaseHold(ctx context.Context, hold Hold) error {
	return d.resolve(ctx, OpReleaseHold, hold)
}

// WithdrawFunds списывает резерв.
func (d *DummyService) WithdrawFunds(ctx context.Context, hold Hold) error {
	return d.resolve(ctx, OpWithdrawFunds, hold)
}

// ActiveHolds возвращает количество неразрешённых резервов.
func (d *DummyService) ActiveHolds() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.holds)
}

// resolve разрешает Hold ровно один раз.
func (d *DummyService) resolve(ctx context.Context, op string, hold Hold) error {
	if err := ctx.Err(); err != nil {
		return &Error{Code: CodeServiceUnavailable, Op: op, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.holds[hold]; !ok {
		return &Error{Code: CodeUnknown, Op: op, Err: ErrHoldNotFound}
	}
	delete(d.holds, hold)
	return nil
}
