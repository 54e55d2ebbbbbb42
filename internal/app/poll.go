package app

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"fxPredictBot/internal/ports"
)

// PollConfig bounds the retries spent waiting for market data.
type PollConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration // 0 keeps polling until the context ends
}

// poll calls fetch until it stops returning ports.ErrDataPending. Any other error ends
// polling immediately. Waits grow exponentially up to MaxInterval.
func poll[T any](ctx context.Context, cfg PollConfig, logger ports.Logger, what string, fields ports.Fields, fetch func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = cfg.MaxElapsed

	operation := func() (T, error) {
		v, err := fetch(ctx)
		if err != nil && !errors.Is(err, ports.ErrDataPending) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		f := ports.Fields{"what": what, "retryIn": wait.String()}
		for k, v := range fields {
			f[k] = v
		}
		logger.Debug(ctx, "Data pending, polling again", f)
	}
	return backoff.RetryNotifyWithData(operation, backoff.WithContext(b, ctx), notify)
}
