package services

import (
	"fmt"
	"sync"
	"time"

	"fanzone/internal/domain"
	"fanzone/pkg/logger"

	"github.com/robfig/cron/v3"
)

// CronScheduler runs recurring tasks on robfig/cron. A task that is still
// running when its next tick comes up is skipped rather than overlapped.
type CronScheduler struct {
	cron *cron.Cron
	log  logger.Logger
}

func NewCronScheduler(log logger.Logger) *CronScheduler {
	cl := cronLogger{log: log}
	return &CronScheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		log:  log,
	}
}

func (s *CronScheduler) Start() {
	s.log.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running tasks to return.
func (s *CronScheduler) Stop() {
	s.log.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// Every schedules task at a fixed interval. Cron schedules have one second
// resolution, so shorter intervals are rejected.
func (s *CronScheduler) Every(interval time.Duration, task func()) (domain.ScheduledTask, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("interval %s is below the 1s scheduler resolution", interval)
	}

	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), task)
	if err != nil {
		return nil, err
	}

	return &cronTask{cron: s.cron, id: id}, nil
}

// Len reports the number of scheduled tasks.
func (s *CronScheduler) Len() int {
	return len(s.cron.Entries())
}

type cronTask struct {
	cron *cron.Cron
	id   cron.EntryID
	once sync.Once
}

func (t *cronTask) Cancel() {
	t.once.Do(func() {
		t.cron.Remove(t.id)
	})
}

// cronLogger adapts our logger to cron's logging interface.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
