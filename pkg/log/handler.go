package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	cerrors "github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// errDetailHandler adds the stacktrace and the typed error name to every
// record that carries an ErrAttr, so slog output matches the zerolog
// backend's "stacktrace" and "detail" fields.
type errDetailHandler struct {
	next slog.Handler
}

// withErrDetail wraps next.
func withErrDetail(next slog.Handler) slog.Handler {
	return &errDetailHandler{next: next}
}

func (h *errDetailHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *errDetailHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != ErrAttrKey {
			return true
		}
		err, _ = a.Value.Any().(error)
		return false
	})
	if err != nil {
		if st := extractStacktrace(err); st != "" {
			r.AddAttrs(slog.String(StacktraceAttrKey, st))
		}
		if kind := errorType(err); kind != "" {
			r.AddAttrs(slog.String(ErrorTypeKey, kind))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *errDetailHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &errDetailHandler{next: h.next.WithAttrs(attrs)}
}

func (h *errDetailHandler) WithGroup(g string) slog.Handler {
	return &errDetailHandler{next: h.next.WithGroup(g)}
}

// extractStacktrace returns the stack recorded by errors.WithStack.
func extractStacktrace(err error) string {
	if d := cerrors.GetSafeDetails(err).SafeDetails; len(d) > 0 {
		return d[0]
	}
	return ""
}

// errorType names the first typed error in the chain, e.g.
// "InsufficientDataError". Plain errors yield "".
func errorType(err error) string {
	var m zerolog.LogObjectMarshaler
	if !cerrors.As(err, &m) {
		return ""
	}
	name := fmt.Sprintf("%T", m)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
