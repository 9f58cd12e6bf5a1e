// Package audit records an append-only activity trail of mutating requests and login events.
package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"loandesk/backend/internal/audit/domain"
	auditrepo "loandesk/backend/internal/audit/repository"
	"loandesk/backend/internal/observability/metrics"
)

// DefaultRetention is how long entries are kept when no retention is configured.
const DefaultRetention = 30 * 24 * time.Hour

const writeTimeout = 5 * time.Second

// AuditLogger writes a single activity entry with an explicit action. Used by the login boundary.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID *int64, userName, action, details string, status domain.Status)
}

// Sink receives every entry after it is persisted. Sink failures are logged and ignored.
type Sink interface {
	Publish(ctx context.Context, a *domain.ActivityLog) error
}

// Options configures a Logger.
type Options struct {
	// QueueSize bounds the write buffer. Zero writes synchronously on the caller's goroutine.
	QueueSize int
	// PruneEvery runs the retention sweep once per this many successful writes.
	PruneEvery int
	Retention  time.Duration
	Sinks      []Sink
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// Logger implements AuditLogger over the activity repository. When queued, a single worker
// drains entries in order; a full queue drops the entry with a warning instead of blocking the request.
type Logger struct {
	repo       auditrepo.Repository
	log        *zap.Logger
	sinks      []Sink
	metrics    *metrics.Metrics
	retention  time.Duration
	pruneEvery int
	now        func() time.Time

	queue chan *domain.ActivityLog
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	writeMu sync.Mutex
	writes  int
}

// NewLogger returns a Logger persisting to repo. With opts.QueueSize > 0 a worker goroutine is
// started; call Close to drain it.
func NewLogger(repo auditrepo.Repository, log *zap.Logger, opts Options) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.PruneEvery <= 0 {
		opts.PruneEvery = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &Logger{
		repo:       repo,
		log:        log,
		sinks:      opts.Sinks,
		metrics:    opts.Metrics,
		retention:  opts.Retention,
		pruneEvery: opts.PruneEvery,
		now:        opts.Now,
	}
	if opts.QueueSize > 0 {
		l.queue = make(chan *domain.ActivityLog, opts.QueueSize)
		l.done = make(chan struct{})
		go l.run()
	}
	return l
}

// LogEvent records an explicit domain event such as a login.
func (l *Logger) LogEvent(ctx context.Context, userID *int64, userName, action, details string, status domain.Status) {
	l.Record(ctx, &domain.ActivityLog{
		UserID:   userID,
		UserName: userName,
		Action:   action,
		Details:  details,
		Status:   status,
	})
}

// Record normalises entry and writes it, either inline or through the queue.
// It never returns an error and never blocks on a full queue.
func (l *Logger) Record(ctx context.Context, entry *domain.ActivityLog) {
	if l == nil || l.repo == nil || entry == nil {
		return
	}
	entry.Action = Truncate(strings.TrimSpace(entry.Action), domain.MaxActionLen)
	if entry.Action == "" {
		entry.Action = "unknown"
	}
	if !entry.Status.Valid() {
		entry.Status = domain.StatusError
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}

	if l.queue == nil {
		l.write(context.WithoutCancel(ctx), entry)
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.drop(entry, "logger closed")
		return
	}
	select {
	case l.queue <- entry:
	default:
		l.drop(entry, "queue full")
	}
}

// Prune deletes entries older than the retention window.
func (l *Logger) Prune(ctx context.Context) (int64, error) {
	n, err := l.repo.DeleteOlderThan(ctx, l.now().UTC().Add(-l.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.log.Info("activity log pruned", zap.Int64("deleted", n), zap.Duration("retention", l.retention))
	}
	return n, nil
}

// Close stops accepting entries and waits for the queue to drain or ctx to end.
func (l *Logger) Close(ctx context.Context) error {
	if l == nil || l.queue == nil {
		return nil
	}
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for entry := range l.queue {
		l.write(context.Background(), entry)
	}
}

func (l *Logger) write(ctx context.Context, entry *domain.ActivityLog) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := l.repo.Create(ctx, entry); err != nil {
		l.count("failed")
		l.log.Warn("audit: failed to write activity entry",
			zap.String("action", entry.Action),
			zap.String("status", string(entry.Status)),
			zap.Error(err),
		)
		return
	}
	l.count("written")

	for _, s := range l.sinks {
		if err := s.Publish(ctx, entry); err != nil {
			l.log.Debug("audit: sink publish failed", zap.Int64("id", entry.ID), zap.Error(err))
		}
	}

	if l.shouldPrune() {
		if _, err := l.Prune(ctx); err != nil {
			l.log.Warn("audit: retention sweep failed", zap.Error(err))
		}
	}
}

func (l *Logger) shouldPrune() bool {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.writes++
	return l.writes%l.pruneEvery == 0
}

func (l *Logger) drop(entry *domain.ActivityLog, reason string) {
	l.count("dropped")
	l.log.Warn("audit: activity entry dropped", zap.String("reason", reason), zap.String("action", entry.Action))
}

func (l *Logger) count(result string) {
	if l.metrics != nil {
		l.metrics.AuditWritesTotal.WithLabelValues(result).Inc()
	}
}
