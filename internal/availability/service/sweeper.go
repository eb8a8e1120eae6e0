package service

import (
	"context"
	"fmt"
	"time"

	"barberline/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the periodic availability housekeeping: reverting lapsed
// holds on every tick and topping up the slot grid every hour. Extra jobs
// such as audio retention can be registered with AddJob before Start.
type Sweeper struct {
	cron    *cron.Cron
	service AvailabilityService
	log     *logger.Logger
	timeout time.Duration
}

func NewSweeper(svc AvailabilityService, interval time.Duration, log *logger.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		service: svc,
		log:     log,
		timeout: interval,
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.sweep); err != nil {
		return nil, fmt.Errorf("failed to schedule hold sweep: %w", err)
	}
	if _, err := s.cron.AddFunc("@hourly", s.extendGrid); err != nil {
		return nil, fmt.Errorf("failed to schedule grid extension: %w", err)
	}
	return s, nil
}

// AddJob schedules fn on spec using the same runner.
func (s *Sweeper) AddJob(spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.Error("Scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.service.SweepExpired(ctx); err != nil {
		s.log.Error("Hold sweep failed", "error", err)
	}
}

func (s *Sweeper) extendGrid() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.service.ExtendGrid(ctx); err != nil {
		s.log.Error("Grid extension failed", "error", err)
	}
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info("Availability sweeper started")
}

// Stop waits for a running job to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Availability sweeper stopped")
	case <-ctx.Done():
		s.log.Warn("Availability sweeper stop timed out")
	}
}
