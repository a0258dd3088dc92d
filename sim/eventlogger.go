package sim

import (
	"reflect"

	"github.com/rs/zerolog"
)

// EventLogger is a hook that logs every event before it is handled. Attach it
// to an engine.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger returns a new EventLogger that writes at trace level.
func NewEventLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	e := h.logger.Trace().
		Uint64("cycle", uint64(evt.Time())).
		Str("event", reflect.TypeOf(evt).String())

	if comp, ok := evt.Handler().(Named); ok {
		e = e.Str("handler", comp.Name())
	}

	e.Msg("event")
}
