package services

import (
	"context"
	"sync"
	"time"

	"fanzone/internal/domain"
	"fanzone/internal/metrics"
	"fanzone/pkg/logger"
)

const DefaultPollInterval = 30 * time.Second

// UnreadPoller keeps the unread notification count of one session fresh.
//
// It is idle until Start receives a session token, then fetches immediately
// and again on every interval tick until Stop. Failed fetches keep the
// previous count.
type UnreadPoller struct {
	source    domain.NotificationSource
	scheduler domain.Scheduler
	interval  time.Duration
	log       logger.Logger
	metrics   *metrics.Metrics
	onChange  func(count int)

	mu           sync.Mutex
	state        domain.PollerState
	token        string
	task         domain.ScheduledTask
	ctx          context.Context
	cancel       context.CancelFunc
	generation   uint64
	count        int
	seq          uint64
	reported     bool
	lastReported int

	// held while onChange runs
	notifyMu sync.Mutex
}

type PollerOption func(*UnreadPoller)

func WithPollInterval(interval time.Duration) PollerOption {
	return func(p *UnreadPoller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithOnChange registers fn to run after a successful fetch whose count
// differs from the last one. The first successful fetch always reports.
func WithOnChange(fn func(count int)) PollerOption {
	return func(p *UnreadPoller) {
		p.onChange = fn
	}
}

func WithPollerMetrics(m *metrics.Metrics) PollerOption {
	return func(p *UnreadPoller) {
		p.metrics = m
	}
}

func NewUnreadPoller(source domain.NotificationSource, scheduler domain.Scheduler, log logger.Logger, opts ...PollerOption) *UnreadPoller {
	p := &UnreadPoller{
		source:    source,
		scheduler: scheduler,
		interval:  DefaultPollInterval,
		log:       log,
		state:     domain.PollerIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start moves the poller to polling for token. An empty token stops it.
// Starting while already polling switches to the new session.
func (p *UnreadPoller) Start(ctx context.Context, token string) error {
	if token == "" {
		p.Stop()
		return nil
	}

	p.mu.Lock()
	if p.state == domain.PollerPolling {
		p.stopLocked()
	}

	p.generation++
	gen := p.generation
	task, err := p.scheduler.Every(p.interval, func() { p.fetch(gen) })
	if err != nil {
		p.mu.Unlock()
		return err
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.task = task
	p.token = token
	p.state = domain.PollerPolling
	p.mu.Unlock()

	p.metrics.PollerStarted()
	p.log.Debug("Unread poller started", "interval", p.interval)

	p.fetch(gen)
	return nil
}

// Refresh fetches right away, outside the regular interval. Ignored while idle.
func (p *UnreadPoller) Refresh() {
	p.mu.Lock()
	if p.state != domain.PollerPolling {
		p.mu.Unlock()
		return
	}
	gen := p.generation
	p.mu.Unlock()

	p.fetch(gen)
}

// Stop cancels the interval task and any fetch in flight. Safe to call
// repeatedly and while idle.
func (p *UnreadPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.PollerPolling {
		return
	}
	p.stopLocked()
}

func (p *UnreadPoller) stopLocked() {
	p.task.Cancel()
	p.cancel()

	p.task = nil
	p.cancel = nil
	p.token = ""
	p.generation++
	p.count = 0
	p.reported = false
	p.state = domain.PollerIdle

	p.metrics.PollerStopped()
	p.log.Debug("Unread poller stopped")
}

func (p *UnreadPoller) State() domain.PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *UnreadPoller) UnreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *UnreadPoller) fetch(gen uint64) {
	p.mu.Lock()
	if p.state != domain.PollerPolling || p.generation != gen {
		p.mu.Unlock()
		return
	}
	ctx, token := p.ctx, p.token
	p.mu.Unlock()

	notifications, err := p.source.ListNotifications(ctx, token)
	if err != nil {
		p.metrics.IncFetch(false)
		if ctx.Err() != nil {
			p.log.Debug("Unread fetch abandoned", "error", err)
			return
		}
		p.log.Warn("Failed to refresh unread notifications", "error", err)
		return
	}
	p.metrics.IncFetch(true)

	count := domain.CountUnread(notifications)

	p.mu.Lock()
	// stopped or restarted while the request was in flight
	if p.state != domain.PollerPolling || p.generation != gen {
		p.mu.Unlock()
		return
	}
	p.count = count
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	p.report(gen, seq)
}

// report hands the current count to onChange. Reports are serialized and a
// result superseded by a newer fetch is skipped, so the last count delivered
// always matches UnreadCount.
func (p *UnreadPoller) report(gen, seq uint64) {
	if p.onChange == nil {
		return
	}

	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if p.state != domain.PollerPolling || p.generation != gen || p.seq != seq {
		p.mu.Unlock()
		return
	}
	if p.reported && p.lastReported == p.count {
		p.mu.Unlock()
		return
	}
	count := p.count
	p.lastReported = count
	p.reported = true
	p.mu.Unlock()

	p.onChange(count)
}
