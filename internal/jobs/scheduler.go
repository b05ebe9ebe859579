package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/sirupsen/logrus"
)

// StatusCounter - источник количества инцидентов по статусам
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[models.IncidentStatus]int, error)
}

// StatusGauge принимает пересчитанные значения
type StatusGauge interface {
	SetStatusCounts(counts map[models.IncidentStatus]int)
}

// Scheduler периодически пересчитывает gauge инцидентов по статусам
type Scheduler struct {
	spec    string
	counter StatusCounter
	gauge   StatusGauge
	logger  *logrus.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(spec string, counter StatusCounter, gauge StatusGauge, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		spec:    spec,
		counter: counter,
		gauge:   gauge,
		logger:  logger,
	}
}

// StartWithContext регистрирует задачу и запускает cron. Повторный вызов ничего не делает.
func (s *Scheduler) StartWithContext(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(
		cron.WithLogger(cron.PrintfLogger(s.logger)),
		cron.WithChain(cron.Recover(cron.PrintfLogger(s.logger)), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.spec, func() {
		if err := s.RunOnce(runCtx); err != nil {
			s.logger.WithError(err).Error("Failed to refresh incident status metrics")
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	s.cron = c
	s.cancel = cancel
	s.running = true
	c.Start()

	s.logger.WithField("spec", s.spec).Info("Metrics scheduler started")

	// первый пересчет сразу, не дожидаясь расписания
	go func() {
		if err := s.RunOnce(runCtx); err != nil {
			s.logger.WithError(err).Error("Failed to refresh incident status metrics")
		}
	}()
	return nil
}

// StopWithContext останавливает cron и ждет завершения текущей задачи
func (s *Scheduler) StopWithContext(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	select {
	case <-c.Stop().Done():
		s.logger.Info("Metrics scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce выполняет один пересчет
func (s *Scheduler) RunOnce(ctx context.Context) error {
	counts, err := s.counter.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("jobs: could not count incidents by status: %w", err)
	}
	s.gauge.SetStatusCounts(counts)
	return nil
}
