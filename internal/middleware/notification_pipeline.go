package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	"RiskWatch/internal/service/metrics"
	applogger "RiskWatch/pkg/logger"
)

// NotificationPipeline sits between the watch evaluator and the sinks.
// It validates, fans out, throttles external sinks, and buffers failed deliveries for redelivery.
type NotificationPipeline struct {
	sinks       []domrepo.NotificationSink
	limiters    map[string]*rate.Limiter
	metrics     domrepo.Metrics
	l           *applogger.Logger
	rps         float64
	burst       int
	bufSize     int
	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration

	bufCh   chan delivery
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

type delivery struct {
	sink     domrepo.NotificationSink
	n        models.Notification
	attempts int
}

type PipelineOption func(*NotificationPipeline)

// WithRateLimit sets the per-sink delivery rate for external sinks.
func WithRateLimit(perSecond float64, burst int) PipelineOption {
	return func(p *NotificationPipeline) {
		if perSecond > 0 {
			p.rps = perSecond
		}
		if burst > 0 {
			p.burst = burst
		}
	}
}

// WithBufferSize sets the redelivery buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *NotificationPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithMaxAttempts bounds the deliveries tried per (sink, notification).
func WithMaxAttempts(n int) PipelineOption {
	return func(p *NotificationPipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBackoff sets the redelivery backoff range.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *NotificationPipeline) {
		if min > 0 {
			p.backoffMin = min
		}
		if max >= p.backoffMin {
			p.backoffMax = max
		}
	}
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *NotificationPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

// NewNotificationPipeline creates a pipeline over sinks. Nil sinks are ignored.
func NewNotificationPipeline(sinks []domrepo.NotificationSink, m domrepo.Metrics, opts ...PipelineOption) *NotificationPipeline {
	if m == nil {
		m = metrics.Nop{}
	}
	p := &NotificationPipeline{
		limiters:    make(map[string]*rate.Limiter),
		metrics:     m,
		l:           applogger.NewNop(),
		rps:         1,
		burst:       5,
		bufSize:     256,
		maxAttempts: 5,
		backoffMin:  50 * time.Millisecond,
		backoffMax:  2 * time.Second,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, s := range sinks {
		if s == nil {
			continue
		}
		p.sinks = append(p.sinks, s)
		if s.External() {
			p.limiters[s.Name()] = rate.NewLimiter(rate.Limit(p.rps), p.burst)
		}
	}
	p.bufCh = make(chan delivery, p.bufSize)
	return p
}

// Sinks returns the names of the registered sinks.
func (p *NotificationPipeline) Sinks() []string {
	out := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		out = append(out, s.Name())
	}
	return out
}

// Start launches background redelivery of buffered notifications.
func (p *NotificationPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case d := <-p.bufCh:
				p.redeliver(ctx, d)
			}
		}
	}()
}

// Stop stops redelivery; buffered notifications are dropped.
func (p *NotificationPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	p.wg.Wait()
	if n := len(p.bufCh); n > 0 {
		p.l.Warn("notification pipeline stopped with pending deliveries", applogger.Int("pending", n))
	}
}

// Dispatch validates each notification and delivers it to every sink. Throttled or failed
// external deliveries are buffered, so Dispatch never blocks on a slow sink's rate limit.
// It returns the number of notifications accepted.
func (p *NotificationPipeline) Dispatch(ctx context.Context, ns []models.Notification) int {
	accepted := 0
	for _, n := range ns {
		if err := n.Validate(); err != nil {
			p.metrics.RecordError("dispatch_validate")
			p.l.Warn("notification rejected", applogger.Error(err))
			continue
		}
		accepted++
		for _, s := range p.sinks {
			p.deliver(ctx, s, n)
		}
	}
	return accepted
}

func (p *NotificationPipeline) deliver(ctx context.Context, s domrepo.NotificationSink, n models.Notification) {
	if lim := p.limiters[s.Name()]; lim != nil && !lim.Allow() {
		p.enqueue(delivery{sink: s, n: n})
		return
	}
	start := time.Now()
	if err := s.Send(ctx, n); err != nil {
		p.metrics.RecordError("dispatch_" + s.Name())
		p.l.Warn("notification delivery failed, buffering",
			applogger.String("sink", s.Name()),
			applogger.String("notification", n.ID),
			applogger.Error(err))
		p.enqueue(delivery{sink: s, n: n, attempts: 1})
		return
	}
	p.metrics.RecordNotification(s.Name())
	p.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
}

func (p *NotificationPipeline) enqueue(d delivery) {
	select {
	case p.bufCh <- d:
	default:
		p.metrics.RecordError("dispatch_buffer_full")
		p.l.Warn("notification buffer full, dropping",
			applogger.String("sink", d.sink.Name()),
			applogger.String("notification", d.n.ID))
	}
}

func (p *NotificationPipeline) redeliver(ctx context.Context, d delivery) {
	if d.attempts > 0 {
		select {
		case <-time.After(p.backoff(d.attempts)):
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
	if lim := p.limiters[d.sink.Name()]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return
		}
	}

	d.attempts++
	if err := d.sink.Send(ctx, d.n); err != nil {
		p.metrics.RecordError("redeliver_" + d.sink.Name())
		if d.attempts >= p.maxAttempts {
			p.metrics.RecordError("dispatch_drop")
			p.l.Error("notification dropped after retries",
				applogger.String("sink", d.sink.Name()),
				applogger.String("notification", d.n.ID),
				applogger.Int("attempts", d.attempts),
				applogger.Error(err))
			return
		}
		p.enqueue(d)
		return
	}
	p.metrics.RecordNotification(d.sink.Name())
}

// backoff doubles from backoffMin per attempt, capped at backoffMax.
func (p *NotificationPipeline) backoff(attempts int) time.Duration {
	d := p.backoffMin
	for i := 1; i < attempts && d < p.backoffMax; i++ {
		d *= 2
	}
	if d > p.backoffMax {
		d = p.backoffMax
	}
	return d
}
