package services

import (
	"context"
	"fmt"
	"time"

	"sweepsapp/config"
	"sweepsapp/metrics"
	"sweepsapp/utils"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 2 * time.Minute

// Scheduler runs the background jobs of a process on cron specs.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
}

func NewScheduler() *Scheduler {
	ctx, stop := context.WithCancel(context.Background())
	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		ctx:  ctx,
		stop: stop,
	}
}

// Add registers fn under name. Each run gets its own timeout and is timed in
// the job metrics.
func (s *Scheduler) Add(spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
		defer cancel()

		start := time.Now()
		err := fn(ctx)
		metrics.RecordJob(name, time.Since(start), err == nil)
		if err != nil {
			logrus.WithField("job", name).WithError(err).Error("Job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.stop()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Jobs are the API process's periodic tasks.
type Jobs struct {
	Notify *NotifyService
	Store  *StoreService
	Games  *GameService
	Auth   *AuthService
	// Limiters are the HTTP rate limiters swept with the auth ones.
	Limiters []*utils.RateLimiter
}

func (j Jobs) sweepLimiters(idle time.Duration) int {
	n := j.Auth.CleanupLimiters(idle)
	for _, rl := range j.Limiters {
		n += rl.Cleanup(idle)
	}
	return n
}

// Register adds the API jobs to s.
func (j Jobs) Register(s *Scheduler, cfg config.Jobs) error {
	if err := s.Add(cfg.SMSDrain, "sms_drain", func(ctx context.Context) error {
		_, _, err := j.Notify.DrainQueue(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := s.Add(cfg.OrderExpiry, "order_expiry", func(ctx context.Context) error {
		n, err := j.Store.ExpireStale(ctx)
		if n > 0 {
			logrus.WithField("orders", n).Info("Expired stale orders")
		}
		return err
	}); err != nil {
		return err
	}
	if err := s.Add(cfg.LobbyWarm, "lobby_warm", j.Games.WarmLobby); err != nil {
		return err
	}
	return s.Add("@every 10m", "limiter_cleanup", func(context.Context) error {
		if n := j.sweepLimiters(30 * time.Minute); n > 0 {
			logrus.WithField("buckets", n).Debug("Swept idle rate limiters")
		}
		return nil
	})
}
