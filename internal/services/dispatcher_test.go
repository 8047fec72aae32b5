package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/mithaq/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticJob(kind string, email *Email) NotificationJob {
	return NotificationJob{
		Kind:  kind,
		Build: func(context.Context) (*Email, error) { return email, nil },
	}
}

func runDispatcher(t *testing.T, d *Dispatcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestDispatcher_SendsQueuedJobs(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	sender := &MockMailSender{}
	d := NewDispatcher(sender, DispatcherConfig{Workers: 2, QueueSize: 8}, m, testLogger())
	runDispatcher(t, d)

	for i := 0; i < 3; i++ {
		require.True(t, d.Enqueue(staticJob(NotificationNewMessage, &Email{To: "wali@example.com", Subject: "s", HTML: "h"})))
	}

	require.Eventually(t, func() bool { return sender.SentCount() == 3 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Notifications.WithLabelValues(NotificationNewMessage, "sent")) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(&MockMailSender{}, DispatcherConfig{QueueSize: 1}, m, testLogger())

	// No workers are running, so the second job has nowhere to go.
	assert.True(t, d.Enqueue(staticJob(NotificationWarned, &Email{To: "a@example.com"})))
	assert.False(t, d.Enqueue(staticJob(NotificationWarned, &Email{To: "b@example.com"})))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Notifications.WithLabelValues(NotificationWarned, "dropped")))
}

func TestDispatcher_ZeroQueueSizeStillBuffers(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(&MockMailSender{}, DispatcherConfig{}, m, testLogger())

	// Without workers an unbuffered queue would drop every job.
	assert.True(t, d.Enqueue(staticJob(NotificationWarned, &Email{To: "a@example.com"})))
	assert.False(t, d.Enqueue(staticJob(NotificationWarned, &Email{To: "b@example.com"})))
}

func TestDispatcher_SkipsNilEmail(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	sender := &MockMailSender{}
	d := NewDispatcher(sender, DispatcherConfig{QueueSize: 4}, m, testLogger())
	runDispatcher(t, d)

	require.True(t, d.Enqueue(staticJob(NotificationNewMessage, nil)))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Notifications.WithLabelValues(NotificationNewMessage, "skipped")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, sender.SentCount())
}

func TestDispatcher_RetriesUpToMaxAttempts(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	var calls atomic.Int32
	sender := &MockMailSender{SendFunc: func(context.Context, string, string, string) error {
		if calls.Add(1) < 3 {
			return errors.New("throttled")
		}
		return nil
	}}
	d := NewDispatcher(sender, DispatcherConfig{QueueSize: 4, MaxAttempts: 3, RetryDelay: time.Millisecond}, m, testLogger())
	runDispatcher(t, d)

	require.True(t, d.Enqueue(staticJob(NotificationBanned, &Email{To: "a@example.com"})))

	require.Eventually(t, func() bool { return sender.SentCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatcher_FailureDoesNotStopWorkers(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	sender := &MockMailSender{}
	d := NewDispatcher(sender, DispatcherConfig{QueueSize: 4}, m, testLogger())
	runDispatcher(t, d)

	require.True(t, d.Enqueue(NotificationJob{
		Kind:  NotificationIncomingLike,
		Build: func(context.Context) (*Email, error) { panic("boom") },
	}))
	require.True(t, d.Enqueue(NotificationJob{
		Kind:  NotificationIncomingLike,
		Build: func(context.Context) (*Email, error) { return nil, errors.New("member gone") },
	}))
	require.True(t, d.Enqueue(staticJob(NotificationIncomingLike, &Email{To: "a@example.com"})))

	require.Eventually(t, func() bool { return sender.SentCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Notifications.WithLabelValues(NotificationIncomingLike, "failed")))
}
