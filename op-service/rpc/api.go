package rpc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/log"

	oplog "github.com/mantlenetworkio/ethbridge/op-service/log"
)

// CommonAdminAPI serves the admin methods shared by every service: runtime control of the
// service logger.
type CommonAdminAPI struct {
	log log.Logger
}

func NewCommonAdminAPI(log log.Logger) *CommonAdminAPI {
	return &CommonAdminAPI{log: log}
}

type levelHandler interface {
	oplog.LvlSetter
	Level() slog.Level
}

func (n *CommonAdminAPI) levelHandler() (levelHandler, error) {
	h, ok := oplog.FindHandler[levelHandler](n.log.Handler())
	if !ok {
		return nil, fmt.Errorf("log handler type %T has no adjustable level", n.log.Handler())
	}
	return h, nil
}

// SetLogLevel changes the minimum level of the service logger.
func (n *CommonAdminAPI) SetLogLevel(ctx context.Context, lvlStr string) error {
	lvl, err := oplog.LevelFromString(lvlStr)
	if err != nil {
		return err
	}
	h, err := n.levelHandler()
	if err != nil {
		return err
	}
	prev := h.Level()
	h.SetLogLevel(lvl)
	n.log.Info("changed log level", "from", prev, "to", lvl)
	return nil
}

// LogLevel returns the minimum level of the service logger.
func (n *CommonAdminAPI) LogLevel(ctx context.Context) (string, error) {
	h, err := n.levelHandler()
	if err != nil {
		return "", err
	}
	return h.Level().String(), nil
}
