// Package scheduler wires up the cron job that periodically refreshes the
// job feed in serve mode.
package scheduler

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Refresher is the feed trigger fired on every tick.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler wraps robfig/cron and manages the refresh loop.
type Scheduler struct {
	cron   *cron.Cron
	target Refresher
	spec   string // cron spec, e.g. "@every 2m"
}

// New creates a Scheduler that refreshes target on spec.
func New(target Refresher, spec string) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		target: target,
		spec:   spec,
	}
}

// Start registers the job and starts the scheduler. Also runs one refresh
// immediately so the feed is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runRefresh(ctx) }); err != nil {
		return errors.Wrapf(err, "schedule %q", s.spec)
	}

	s.cron.Start()
	log.WithField("spec", s.spec).Info("feed refresh scheduled")

	go s.runRefresh(ctx)
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("feed refresh stopped")
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.target.Refresh(ctx); err != nil {
		log.WithError(err).Warn("scheduled feed refresh failed")
		return
	}
	log.Debug("feed refreshed")
}
