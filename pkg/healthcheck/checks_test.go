package healthcheck

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"example.com/card-settlement/pkg/metrics"
)

func TestMySQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	check := MySQL(gormDB)
	assert.Equal(t, "mysql", check.Name)
	assert.False(t, check.Optional)

	mock.ExpectPing()
	assert.NoError(t, check.Probe(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection lost"))
	assert.Error(t, check.Probe(context.Background()))
}

func TestRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	check := Redis(rdb)
	assert.True(t, check.Optional)
	assert.NoError(t, check.Probe(context.Background()))

	mr.Close()
	assert.Error(t, check.Probe(context.Background()))
}

func probe(name string, err error, optional bool) Check {
	return Check{
		Name:     name,
		Probe:    func(context.Context) error { return err },
		Optional: optional,
	}
}

func TestChecker_Ready(t *testing.T) {
	mysqlDown := errors.New("mysql down")

	tests := []struct {
		name    string
		checks  []Check
		wantErr error
	}{
		{name: "всё доступно", checks: []Check{probe("hc-a", nil, false), probe("hc-b", nil, true)}},
		{name: "упала обязательная", checks: []Check{probe("hc-a", mysqlDown, false), probe("hc-b", nil, true)}, wantErr: mysqlDown},
		{name: "упала необязательная", checks: []Check{probe("hc-a", nil, false), probe("hc-b", errors.New("redis down"), true)}},
		{name: "без проверок", checks: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewChecker(time.Second, tt.checks...).Ready(context.Background())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestChecker_ReportsDependencyGauge(t *testing.T) {
	checker := NewChecker(time.Second,
		probe("hc-up", nil, false),
		probe("hc-down", errors.New("down"), true),
	)

	require.NoError(t, checker.Ready(context.Background()))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DependencyUp.WithLabelValues("hc-up")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.DependencyUp.WithLabelValues("hc-down")))
}

func TestChecker_Timeout(t *testing.T) {
	slow := Check{
		Name: "hc-slow",
		Probe: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}

	err := NewChecker(20*time.Millisecond, slow).Ready(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
