package cliapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/mantlenetworkio/ethbridge/op-service/ctxinterrupt"
)

type Lifecycle interface {
	// Start starts a service. A service only fully starts once. Subsequent starts may return an error.
	// A context is provided to end the service during setup.
	// The caller should call Stop to clean up after failing to start.
	Start(ctx context.Context) error
	// Stop stops a service gracefully.
	// The provided ctx can force an accelerated shutdown,
	// but the node still has to completely stop.
	Stop(ctx context.Context) error
	// Stopped determines if the service was already fully stopped.
	Stopped() bool
}

// LifecycleAction instantiates a Lifecycle based on a CLI context.
// The close argument can be used to shut down the service from within, and the cause is returned
// as error of the command.
type LifecycleAction func(ctx *cli.Context, close context.CancelCauseFunc) (Lifecycle, error)

// LifecycleCmd turns a LifecycleAction into a CLI action. The service runs until the first
// interrupt, and a second interrupt forces the shutdown.
func LifecycleCmd(fn LifecycleAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		hostCtx := c.Context
		appCtx, appCancel := context.WithCancelCause(hostCtx)
		defer appCancel(nil)
		c.Context = appCtx

		go func() {
			if err := ctxinterrupt.Wait(appCtx); err == nil {
				appCancel(errors.New("interrupt signal"))
			}
		}()

		appLifecycle, err := fn(c, appCancel)
		if err != nil {
			return errors.Join(
				fmt.Errorf("failed to setup: %w", err),
				context.Cause(appCtx),
			)
		}

		if err := appLifecycle.Start(appCtx); err != nil {
			return errors.Join(
				fmt.Errorf("failed to start: %w", err),
				context.Cause(appCtx),
			)
		}

		<-appCtx.Done()

		stopCtx, stopCancel := ctxinterrupt.WithCancelOnInterrupt(hostCtx)
		stopErr := appLifecycle.Stop(stopCtx)
		stopCancel()
		if stopErr != nil {
			return errors.Join(fmt.Errorf("failed to stop app: %w", stopErr), context.Cause(appCtx))
		}
		if cause := context.Cause(appCtx); !errors.Is(cause, context.Canceled) {
			log.Info("app stopped", "cause", cause)
		}
		return nil
	}
}
