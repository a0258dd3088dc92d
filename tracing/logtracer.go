package tracing

import (
	"github.com/rs/zerolog"
	"github.com/sarchlab/dtusim/sim"
)

// LogTracer writes one structured log line per task event.
type LogTracer struct {
	timeTeller sim.TimeTeller
	logger     zerolog.Logger
	filter     TaskFilter
	tracked    map[string]bool
}

// NewLogTracer creates a new LogTracer.
func NewLogTracer(
	timeTeller sim.TimeTeller,
	logger zerolog.Logger,
	filter TaskFilter,
) *LogTracer {
	return &LogTracer{
		timeTeller: timeTeller,
		logger:     logger,
		filter:     filter,
		tracked:    make(map[string]bool),
	}
}

// Func logs the task events.
func (t *LogTracer) Func(ctx sim.HookCtx) {
	now := uint64(t.timeTeller.CurrentTime())

	switch ctx.Pos {
	case HookPosTaskStart:
		task := ctx.Item.(TaskStart)
		if !t.filter(task) {
			return
		}

		t.tracked[task.ID] = true
		t.logger.Debug().
			Uint64("cycle", now).
			Str("task", task.ID).
			Str("parent", task.ParentID).
			Str("kind", task.Kind).
			Str("what", task.What).
			Str("where", task.Where).
			Msg("task start")
	case HookPosTaskTag:
		tag := ctx.Item.(TaskTag)
		if !t.tracked[tag.TaskID] {
			return
		}

		t.logger.Debug().
			Uint64("cycle", now).
			Str("task", tag.TaskID).
			Str("what", tag.What).
			Str("detail", tag.Detail).
			Msg("task tag")
	case HookPosTaskEnd:
		end := ctx.Item.(TaskEnd)
		if !t.tracked[end.ID] {
			return
		}

		delete(t.tracked, end.ID)
		t.logger.Debug().
			Uint64("cycle", now).
			Str("task", end.ID).
			Msg("task end")
	}
}
