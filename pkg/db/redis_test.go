package db

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/card-settlement/pkg/config"
)

func TestConnectRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg := config.RedisConfig{Host: mr.Host(), Port: port}

	rdb := ConnectRedis(cfg)
	defer rdb.Close()

	assert.NoError(t, PingRedis(context.Background(), rdb))

	mr.Close()
	assert.Error(t, PingRedis(context.Background(), rdb))
}
