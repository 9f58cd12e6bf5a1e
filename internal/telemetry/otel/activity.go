package otel

import (
	"context"
	"strconv"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"loandesk/backend/internal/audit/domain"
)

// ActivityEmitter mirrors activity entries as OTel log records.
type ActivityEmitter struct {
	logger otellog.Logger
}

// NewActivityEmitter returns an emitter bound to provider. A nil provider yields nil,
// which the audit logger treats as "no sink".
func NewActivityEmitter(provider *sdklog.LoggerProvider) *ActivityEmitter {
	if provider == nil {
		return nil
	}
	return &ActivityEmitter{logger: provider.Logger("loandesk.activity")}
}

// Publish converts entry to a log record and emits it. Emit never fails from the caller's view.
func (e *ActivityEmitter) Publish(ctx context.Context, entry *domain.ActivityLog) error {
	if e == nil || entry == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := entry.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue(entry.Action))
	rec.SetSeverity(severityFor(entry.Status))
	rec.SetSeverityText(string(entry.Status))
	if entry.UserID != nil {
		rec.AddAttributes(otellog.String("user_id", strconv.FormatInt(*entry.UserID, 10)))
	}
	if entry.UserName != "" {
		rec.AddAttributes(otellog.String("user_name", entry.UserName))
	}
	if entry.Details != "" {
		rec.AddAttributes(otellog.String("details", entry.Details))
	}
	rec.AddAttributes(otellog.String("status", string(entry.Status)))
	e.logger.Emit(ctx, rec)
	return nil
}

func severityFor(s domain.Status) otellog.Severity {
	switch s {
	case domain.StatusSuccess:
		return otellog.SeverityInfo
	case domain.StatusFailure:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityError
	}
}
