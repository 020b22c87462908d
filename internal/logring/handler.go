package logring

import (
	"context"
	"log/slog"
)

// taskIDKey is the slog attribute key workers use to tag a log line with
// its owning task (spec section 3: "per task-id (plus a 'general' id)").
const taskIDKey = "task_id"

// Handler wraps a real slog.Handler, mirroring every record into a
// Registry in addition to passing it through unchanged (design note:
// "a worker just logs through its *slog.Logger and the ring fills itself
// as a side effect").
type Handler struct {
	next     slog.Handler
	registry *Registry
	attrs    []slog.Attr
}

// NewHandler wraps next so every record it handles is also appended to
// registry.
func NewHandler(next slog.Handler, registry *Registry) *Handler {
	return &Handler{next: next, registry: registry}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	h.observe(record)

	return h.next.Handle(ctx, record)
}

func (h *Handler) observe(record slog.Record) {
	line := Line{
		Time:    record.Time,
		Level:   record.Level.String(),
		Message: record.Message,
		Attrs:   make(map[string]string, record.NumAttrs()+len(h.attrs)),
	}

	taskID := GeneralID

	addAttr := func(a slog.Attr) bool {
		if a.Key == taskIDKey {
			if v := a.Value.String(); v != "" {
				taskID = v
			}

			return true
		}

		line.Attrs[a.Key] = a.Value.String()

		return true
	}

	for _, a := range h.attrs {
		addAttr(a)
	}

	record.Attrs(addAttr)

	h.registry.Append(taskID, line)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &Handler{next: h.next.WithAttrs(attrs), registry: h.registry, attrs: merged}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), registry: h.registry, attrs: h.attrs}
}

// TaskLogger returns a logger that tags every record with taskID, so its
// lines land in that task's ring (design note: workers call this once per
// run rather than passing task_id on every log call).
func TaskLogger(base *slog.Logger, taskID string) *slog.Logger {
	return base.With(slog.String(taskIDKey, taskID))
}
