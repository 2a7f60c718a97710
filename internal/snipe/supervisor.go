// internal/snipe/supervisor.go
package snipe

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/snipe-engine/internal/metrics"
)

// Loop is a long-running task. Run returns nil once ctx is cancelled.
type Loop interface {
	Name() string
	Run(ctx context.Context) error
}

type SupervisorConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// StableAfter resets the restart delay once a loop has run this long without failing.
	StableAfter time.Duration
}

func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		StableAfter:  5 * time.Minute,
	}
}

// Supervisor runs loops side by side and restarts any that fail or panic.
type Supervisor struct {
	loops   []Loop
	config  SupervisorConfig
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewSupervisor(config SupervisorConfig, m *metrics.Collector, logger *zap.Logger, loops ...Loop) *Supervisor {
	def := DefaultSupervisorConfig()
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.StableAfter <= 0 {
		config.StableAfter = def.StableAfter
	}
	return &Supervisor{
		loops:   loops,
		config:  config,
		metrics: m,
		logger:  logger.Named("supervisor"),
	}
}

// Run blocks until ctx is cancelled and every loop has returned.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, loop := range s.loops {
		g.Go(func() error {
			s.supervise(ctx, loop)
			return nil
		})
	}
	return g.Wait()
}

func (s *Supervisor) supervise(ctx context.Context, loop Loop) {
	log := s.logger.With(zap.String("loop", loop.Name()))

	delays := backoff.NewExponentialBackOff()
	delays.InitialInterval = s.config.InitialDelay
	delays.MaxInterval = s.config.MaxDelay

	for {
		started := time.Now()
		err := runSafely(ctx, loop)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = fmt.Errorf("loop returned before shutdown")
		}
		if time.Since(started) >= s.config.StableAfter {
			delays.Reset()
		}
		delay := delays.NextBackOff()
		log.Error("Loop failed, restarting", zap.Duration("restart_in", delay), zap.Error(err))
		s.metrics.RecordLoopRestart(loop.Name())

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func runSafely(ctx context.Context, loop Loop) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v\n%s", loop.Name(), r, debug.Stack())
		}
	}()
	return loop.Run(ctx)
}
