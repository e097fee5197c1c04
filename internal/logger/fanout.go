package logger

import (
	"context"
	"errors"
	"log/slog"
)

// fanoutHandler routes each record to every output whose own level admits it,
// so a debug file output does not leak debug lines onto an info console.
type fanoutHandler struct {
	outputs []slog.Handler
}

func newFanoutHandler(outputs ...slog.Handler) slog.Handler {
	return &fanoutHandler{outputs: outputs}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, out := range h.outputs {
		if out.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler passes records by value
func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, out := range h.outputs {
		if !out.Enabled(ctx, record.Level) {
			continue
		}
		// handlers may retain attrs, each gets its own copy
		if err := out.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(out slog.Handler) slog.Handler { return out.WithAttrs(attrs) })
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(out slog.Handler) slog.Handler { return out.WithGroup(name) })
}

func (h *fanoutHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	outputs := make([]slog.Handler, len(h.outputs))
	for i, out := range h.outputs {
		outputs[i] = fn(out)
	}
	return &fanoutHandler{outputs: outputs}
}
