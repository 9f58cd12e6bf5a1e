package interceptors

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"loandesk/backend/internal/audit"
	auditdomain "loandesk/backend/internal/audit/domain"
)

// DefaultPreviewLimit caps the request-body preview stored in details, in characters.
const DefaultPreviewLimit = 500

const redacted = "[redacted]"

var sensitiveKeys = map[string]bool{
	"password":     true,
	"new_password": true,
	"token":        true,
}

// sensitiveValue matches a string value of a sensitive key, including one cut off by truncation.
var sensitiveValue = regexp.MustCompile(`(?i)("(?:password|new_password|token)"\s*:\s*)"(?:[^"\\]|\\.?)*(?:"|$)`)

// ActivityRecorder persists one activity entry without failing the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, entry *auditdomain.ActivityLog)
}

// Audit returns middleware that records one activity entry per mutating request after the
// handler returns. It must run after Authenticate so the acting identity is in context, and
// after any authorization interceptor so rejected requests are not recorded.
// The handler still reads the complete body; only a preview is kept for details.
func Audit(rec ActivityRecorder, previewLimit int) func(http.Handler) http.Handler {
	if previewLimit <= 0 {
		previewLimit = DefaultPreviewLimit
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !audit.IsMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			preview := snapshotBody(r, previewLimit)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			entry := &auditdomain.ActivityLog{
				Action:  audit.RequestAction(r.Method, r.URL.Path),
				Details: preview,
				Status:  auditdomain.StatusForCode(code),
			}
			if id, ok := IdentityFrom(r.Context()); ok {
				uid := id.UserID
				entry.UserID = &uid
				entry.UserName = id.DisplayName
				if entry.UserName == "" {
					entry.UserName = id.PrincipalID
				}
			}
			rec.Record(r.Context(), entry)
		})
	}
}

// snapshotBody reads enough of the body for a preview and puts the bytes back in front of
// the unread remainder.
func snapshotBody(r *http.Request, limit int) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	// A character is at most 4 bytes; one extra byte tells whether the body was cut.
	head, err := io.ReadAll(io.LimitReader(r.Body, int64(limit*4+1)))
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(head), r.Body), Closer: r.Body}
	if err != nil && len(head) == 0 {
		return ""
	}
	complete := len(head) <= limit*4
	return audit.Truncate(redact(head, complete), limit)
}

// redact masks credential fields. A complete JSON object is rewritten through encoding/json;
// anything else, including a truncated body, gets a textual scan.
func redact(body []byte, complete bool) string {
	if !complete {
		return scrub(body)
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return scrub(body)
	}
	changed := false
	for k := range obj {
		if sensitiveKeys[strings.ToLower(k)] {
			obj[k] = redacted
			changed = true
		}
	}
	if !changed {
		return string(body)
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return string(body)
	}
	return string(out)
}

func scrub(body []byte) string {
	return sensitiveValue.ReplaceAllString(string(body), `${1}"`+redacted+`"`)
}

type readCloser struct {
	io.Reader
	io.Closer
}

// ClientIP returns the host part of RemoteAddr, or "unknown". Forwarding headers are resolved
// once by middleware.RealIP ahead of this.
func ClientIP(r *http.Request) string {
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}
