package cache

import (
	"context"
	"log/slog"
	"time"

	"noisereports/internal/infrastructure"
)

type options struct {
	remoteTimeout time.Duration
	logger        *slog.Logger
	metrics       *infrastructure.BusinessMetrics
}

// Option configures a cache
type Option func(*options)

// WithRemoteTimeout bounds every remote call made by the cache. Zero disables it.
func WithRemoteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.remoteTimeout = d
	}
}

// WithLogger sets the cache logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records lookups, fetches and parses on m
func WithMetrics(m *infrastructure.BusinessMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = infrastructure.WithComponent(o.logger, component)
	return o
}

func (o options) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.remoteTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.remoteTimeout)
}
