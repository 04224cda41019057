package rpc

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/log"

	oplog "github.com/mantlenetworkio/ethbridge/op-service/log"
	"github.com/mantlenetworkio/ethbridge/op-service/testlog"
)

type decorated struct {
	slog.Handler
}

func (d *decorated) Unwrap() slog.Handler {
	return d.Handler
}

func TestCommonAdminAPI(t *testing.T) {
	ctx := context.Background()

	t.Run("wrapped dynamic handler", func(t *testing.T) {
		dyn := oplog.NewDynamicLogHandler(log.LevelInfo, oplog.LogfmtMsHandler(io.Discard))
		api := NewCommonAdminAPI(log.NewLogger(&decorated{Handler: dyn}))

		require.NoError(t, api.SetLogLevel(ctx, "debug"))
		require.Equal(t, log.LevelDebug, dyn.Level())
		lvl, err := api.LogLevel(ctx)
		require.NoError(t, err)
		parsed, err := oplog.LevelFromString(lvl)
		require.NoError(t, err)
		require.Equal(t, log.LevelDebug, parsed)

		require.ErrorContains(t, api.SetLogLevel(ctx, "loud"), "unknown level")
		require.Equal(t, log.LevelDebug, dyn.Level())
	})

	t.Run("fixed handler", func(t *testing.T) {
		api := NewCommonAdminAPI(testlog.Logger(t, log.LevelInfo))
		require.ErrorContains(t, api.SetLogLevel(ctx, "debug"), "no adjustable level")
		_, err := api.LogLevel(ctx)
		require.Error(t, err)
	})
}
