package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/mithaq/internal/metrics"
	"github.com/BradenHooton/mithaq/pkg/logger"
)

// Email is a rendered outbound message
type Email struct {
	To      string
	Subject string
	HTML    string
}

// NotificationJob is resolved lazily by a worker. Build returns a nil Email
// when nothing should be sent.
type NotificationJob struct {
	Kind  string
	Build func(ctx context.Context) (*Email, error)
}

// Notification kinds
const (
	NotificationNewMessage   = "new_message"
	NotificationIncomingLike = "incoming_like"
	NotificationSuspended    = "suspended"
	NotificationWarned       = "warned"
	NotificationBanned       = "banned"
)

// Notification outcomes
const (
	outcomeSent    = "sent"
	outcomeFailed  = "failed"
	outcomeDropped = "dropped"
	outcomeSkipped = "skipped"
)

// Enqueuer accepts notification jobs without blocking
type Enqueuer interface {
	Enqueue(job NotificationJob) bool
}

// DispatcherConfig sizes the notification queue
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	SendTimeout time.Duration
	RetryDelay  time.Duration
}

// Dispatcher is a bounded in-process outbox for notification email. Enqueue
// never blocks: when the queue is full the job is dropped.
type Dispatcher struct {
	sender  MailSender
	jobs    chan NotificationJob
	cfg     DispatcherConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewDispatcher(sender MailSender, cfg DispatcherConfig, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Dispatcher{
		sender:  sender,
		jobs:    make(chan NotificationJob, cfg.QueueSize),
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Enqueue hands job to the workers. It reports false when the job was dropped.
func (d *Dispatcher) Enqueue(job NotificationJob) bool {
	select {
	case d.jobs <- job:
		d.metrics.SetQueueDepth(len(d.jobs))
		return true
	default:
		d.metrics.IncNotification(job.Kind, outcomeDropped)
		d.logger.Warn("notification queue full, dropping job", slog.String("kind", job.Kind))
		return false
	}
}

// Run starts the workers and blocks until ctx is done. Jobs still queued at
// shutdown are discarded.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.worker(ctx, id)
		}(i)
	}

	d.logger.Info("notification dispatcher started", slog.Int("workers", d.cfg.Workers))
	wg.Wait()

	if n := len(d.jobs); n > 0 {
		d.logger.Warn("notification dispatcher stopped with queued jobs", slog.Int("discarded", n))
	}
	return nil
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.jobs:
			d.metrics.SetQueueDepth(len(d.jobs))
			d.process(ctx, job)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, job NotificationJob) {
	defer func() {
		if p := recover(); p != nil {
			d.metrics.IncNotification(job.Kind, outcomeFailed)
			d.logger.Error("notification job panicked", slog.String("kind", job.Kind), slog.Any("panic", p))
		}
	}()

	buildCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	email, err := job.Build(buildCtx)
	cancel()
	if err != nil {
		d.metrics.IncNotification(job.Kind, outcomeFailed)
		d.logger.Error("failed to build notification", slog.String("kind", job.Kind), slog.Any("error", err))
		return
	}
	if email == nil {
		d.metrics.IncNotification(job.Kind, outcomeSkipped)
		return
	}

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err = d.sender.Send(sendCtx, email.To, email.Subject, email.HTML)
		cancel()
		if err == nil {
			d.metrics.IncNotification(job.Kind, outcomeSent)
			return
		}

		d.logger.Warn("notification send failed",
			slog.String("kind", job.Kind),
			slog.String("to", logger.SanitizedEmail(email.To)),
			slog.Int("attempt", attempt),
			slog.Any("error", err))

		if attempt < d.cfg.MaxAttempts && !sleepCtx(ctx, time.Duration(attempt*attempt)*d.cfg.RetryDelay) {
			break
		}
	}

	d.metrics.IncNotification(job.Kind, outcomeFailed)
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
