// internal/jobs/scheduler.go
package jobs

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Job is a recurring background task.
type Job interface {
	Name() string
	Definition() gocron.JobDefinition
	Execute(ctx context.Context)
}

type Scheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	logger    logrus.FieldLogger
}

func NewScheduler(logger logrus.FieldLogger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{scheduler: s, ctx: ctx, cancel: cancel, logger: logger}, nil
}

// Register adds job in singleton mode: a run still in progress makes the
// next tick reschedule instead of overlapping.
func (s *Scheduler) Register(job Job) error {
	_, err := s.scheduler.NewJob(
		job.Definition(),
		gocron.NewTask(func() { job.Execute(s.ctx) }),
		gocron.WithName(job.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
	}
	s.logger.WithField("job", job.Name()).Info("Job registered")
	return nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.logger.Info("Job scheduler started")
}

func (s *Scheduler) Stop() {
	s.cancel()
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.WithError(err).Error("Failed to shutdown scheduler")
	}
	s.logger.Info("Job scheduler stopped")
}
