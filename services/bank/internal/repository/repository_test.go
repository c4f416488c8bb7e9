package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/card-settlement/services/bank/internal/domain"
)

// =====================================
// Вспомогательные функции
// =====================================

// setupMockDB создаёт мок базы данных с GORM.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Ошибка создания sqlmock")
	t.Cleanup(func() { _ = db.Close() })

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Ошибка инициализации GORM")

	return gormDB, mock
}

var paymentColumns = []string{"id", "amount", "card_number", "status", "created_at", "updated_at"}

const (
	selectPaymentForUpdate = "SELECT \\* FROM `payments` WHERE id = \\? ORDER BY `payments`.`id` LIMIT \\? FOR UPDATE"
	selectRefundSum        = "SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM `refunds` WHERE payment_id = \\?"
)

// =====================================
// PaymentRepository
// =====================================

func TestPaymentRepository_Create(t *testing.T) {
	tests := []struct {
		name        string
		execErr     error
		expectedErr error
	}{
		{name: "успешное создание"},
		{name: "карта уже использована", execErr: errors.New("Error 1062 (23000): Duplicate entry '123456789012345' for key 'idx_payments_card_number'"), expectedErr: domain.ErrCardAlreadyUsed},
		{name: "переведённая ошибка GORM", execErr: gorm.ErrDuplicatedKey, expectedErr: domain.ErrCardAlreadyUsed},
		{name: "ошибка БД", execErr: sql.ErrConnDone, expectedErr: sql.ErrConnDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewPaymentRepository(db)
			payment := domain.NewPayment(1205, domain.CardNumber("123456789012345"))

			mock.ExpectBegin()
			exec := mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `payments`")).
				WithArgs(payment.ID, payment.Amount, "123456789012345", "processing", sqlmock.AnyArg(), sqlmock.AnyArg())
			if tt.execErr != nil {
				exec.WillReturnError(tt.execErr)
				mock.ExpectRollback()
			} else {
				exec.WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			}

			err := repo.Create(context.Background(), payment)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPaymentRepository_GetByID(t *testing.T) {
	t.Run("найден", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPaymentRepository(db)
		now := time.Now()

		rows := sqlmock.NewRows(paymentColumns).
			AddRow("payment-1", 1205, "123456789012345", "approved", now, now)
		mock.ExpectQuery("SELECT \\* FROM `payments` WHERE id = \\? ORDER BY `payments`.`id` LIMIT \\?").
			WithArgs("payment-1", 1).
			WillReturnRows(rows)

		payment, err := repo.GetByID(context.Background(), "payment-1")

		require.NoError(t, err)
		assert.Equal(t, int64(1205), payment.Amount)
		assert.Equal(t, domain.CardNumber("123456789012345"), payment.CardNumber)
		assert.Equal(t, domain.PaymentStatusApproved, payment.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("не найден", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPaymentRepository(db)

		mock.ExpectQuery("SELECT \\* FROM `payments` WHERE id = \\?").
			WithArgs("missing", 1).
			WillReturnRows(sqlmock.NewRows(paymentColumns))

		_, err := repo.GetByID(context.Background(), "missing")

		assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	})
}

func TestPaymentRepository_UpdateStatus(t *testing.T) {
	t.Run("approved с записью в outbox", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPaymentRepository(db)

		payment := domain.NewPayment(1205, domain.CardNumber("123456789012345"))
		require.NoError(t, payment.TransitionTo(domain.PaymentStatusApproved))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `payments` SET `status`=\\?,`updated_at`=\\? WHERE id = \\? AND status IN \\(\\?\\)").
			WithArgs("approved", sqlmock.AnyArg(), payment.ID, "processing").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO `outbox`").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := repo.UpdateStatus(context.Background(), payment, "")

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("строка уже в другом статусе", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPaymentRepository(db)

		payment := domain.NewPayment(1205, domain.CardNumber("123456789012345"))
		require.NoError(t, payment.TransitionTo(domain.PaymentStatusFailed))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `payments` SET").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.UpdateStatus(context.Background(), payment, "service_unavailable")

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ошибка outbox откатывает статус", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPaymentRepository(db)

		payment := domain.NewPayment(1205, domain.CardNumber("123456789012345"))
		require.NoError(t, payment.TransitionTo(domain.PaymentStatusDeclined))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `payments` SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO `outbox`").
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := repo.UpdateStatus(context.Background(), payment, "insufficient_funds")

		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("processing недостижим", func(t *testing.T) {
		db, _ := setupMockDB(t)
		repo := NewPaymentRepository(db)

		err := repo.UpdateStatus(context.Background(), &domain.Payment{ID: "p", Status: domain.PaymentStatusProcessing}, "")

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestPaymentRepository_GetStuckProcessing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPaymentRepository(db)
	old := time.Now().Add(-time.Hour)

	rows := sqlmock.NewRows(paymentColumns).
		AddRow("payment-1", 100, "123456789012345", "processing", old, old).
		AddRow("payment-2", 200, "123456789012346", "processing", old, old)
	mock.ExpectQuery("SELECT \\* FROM `payments` WHERE status = \\? AND created_at < \\? ORDER BY created_at ASC LIMIT \\?").
		WithArgs("processing", sqlmock.AnyArg(), 50).
		WillReturnRows(rows)

	payments, err := repo.GetStuckProcessing(context.Background(), 5*time.Minute, 50)

	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "payment-2", payments[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =====================================
// RefundRepository
// =====================================

func TestRefundRepository_Create(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		amount      int64
		setup       func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name:   "возврат помещается в остаток",
			amount: 205,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(selectPaymentForUpdate).
					WithArgs("payment-1", 1).
					WillReturnRows(sqlmock.NewRows(paymentColumns).
						AddRow("payment-1", 1205, "123456789012345", "approved", now, now))
				mock.ExpectQuery(selectRefundSum).
					WithArgs("payment-1").
					WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(1000))
				mock.ExpectExec("INSERT INTO `refunds`").
					WithArgs(sqlmock.AnyArg(), "payment-1", int64(205), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec("INSERT INTO `outbox`").
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
		},
		{
			name:   "превышение суммы",
			amount: 206,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(selectPaymentForUpdate).
					WithArgs("payment-1", 1).
					WillReturnRows(sqlmock.NewRows(paymentColumns).
						AddRow("payment-1", 1205, "123456789012345", "approved", now, now))
				mock.ExpectQuery(selectRefundSum).
					WithArgs("payment-1").
					WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(1000))
				mock.ExpectRollback()
			},
			expectedErr: domain.ErrExcessiveRefund,
		},
		{
			name:   "платёж не approved",
			amount: 1,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(selectPaymentForUpdate).
					WithArgs("payment-1", 1).
					WillReturnRows(sqlmock.NewRows(paymentColumns).
						AddRow("payment-1", 1205, "123456789012345", "declined", now, now))
				mock.ExpectRollback()
			},
			expectedErr: domain.ErrPaymentNotApproved,
		},
		{
			name:   "платёж не найден",
			amount: 1,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(selectPaymentForUpdate).
					WithArgs("payment-1", 1).
					WillReturnRows(sqlmock.NewRows(paymentColumns))
				mock.ExpectRollback()
			},
			expectedErr: domain.ErrPaymentNotFound,
		},
		{
			name:   "ошибка вставки",
			amount: 5,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(selectPaymentForUpdate).
					WithArgs("payment-1", 1).
					WillReturnRows(sqlmock.NewRows(paymentColumns).
						AddRow("payment-1", 1205, "123456789012345", "approved", now, now))
				mock.ExpectQuery(selectRefundSum).
					WithArgs("payment-1").
					WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(0))
				mock.ExpectExec("INSERT INTO `refunds`").
					WillReturnError(sql.ErrConnDone)
				mock.ExpectRollback()
			},
			expectedErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewRefundRepository(db)
			tt.setup(mock)

			refund, err := domain.NewRefund("payment-1", tt.amount)
			require.NoError(t, err)

			err = repo.Create(context.Background(), refund)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRefundRepository_GetByID(t *testing.T) {
	t.Run("найден", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewRefundRepository(db)
		now := time.Now()

		mock.ExpectQuery("SELECT \\* FROM `refunds` WHERE id = \\? AND payment_id = \\?").
			WithArgs("refund-1", "payment-1", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id", "amount", "created_at", "updated_at"}).
				AddRow("refund-1", "payment-1", 300, now, now))

		refund, err := repo.GetByID(context.Background(), "payment-1", "refund-1")

		require.NoError(t, err)
		assert.Equal(t, int64(300), refund.Amount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("чужой платёж", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewRefundRepository(db)

		mock.ExpectQuery("SELECT \\* FROM `refunds`").
			WithArgs("refund-1", "payment-2", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetByID(context.Background(), "payment-2", "refund-1")

		assert.ErrorIs(t, err, domain.ErrRefundNotFound)
	})
}

func TestModels(t *testing.T) {
	assert.Len(t, Models(), 3)
}
