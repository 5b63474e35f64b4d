package audit

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs an Auditor on a cron spec. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	auditor *Auditor
	logger  zerolog.Logger
	running atomic.Bool
}

// NewScheduler parses spec ("@every 5m", "*/10 * * * *", ...) and binds it to
// auditor. Runs start only after Start.
func NewScheduler(ctx context.Context, spec string, auditor *Auditor, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{logger})),
		auditor: auditor,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.runOnce(ctx) }); err != nil {
		return nil, fmt.Errorf("audit schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("previous audit still running, skipping tick")
		return
	}
	defer s.running.Store(false)
	_, _ = s.auditor.Run(ctx)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running audit to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts zerolog to cron's logr-style interface.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
