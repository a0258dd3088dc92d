package tracing

import (
	"sync"

	"github.com/sarchlab/dtusim/sim"
)

// A TraceWriter stores the finished tasks somewhere.
type TraceWriter interface {
	Init() error
	Write(task Task)
	Flush()
}

// DBTracer collects the tasks that pass the filter and hands every finished
// task to a TraceWriter.
type DBTracer struct {
	timeTeller sim.TimeTeller
	writer     TraceWriter
	filter     TaskFilter

	lock          sync.Mutex
	inflightTasks map[string]*Task
}

// NewDBTracer creates a new DBTracer.
func NewDBTracer(
	timeTeller sim.TimeTeller,
	writer TraceWriter,
	filter TaskFilter,
) *DBTracer {
	return &DBTracer{
		timeTeller:    timeTeller,
		writer:        writer,
		filter:        filter,
		inflightTasks: make(map[string]*Task),
	}
}

// Func collects the task information.
func (t *DBTracer) Func(ctx sim.HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch ctx.Pos {
	case HookPosTaskStart:
		t.startTask(ctx.Item.(TaskStart))
	case HookPosTaskTag:
		tag := ctx.Item.(TaskTag)
		if task, ok := t.inflightTasks[tag.TaskID]; ok {
			task.Tags = append(task.Tags, tag)
		}
	case HookPosTaskEnd:
		t.endTask(ctx.Item.(TaskEnd))
	}
}

func (t *DBTracer) startTask(start TaskStart) {
	if !t.filter(start) {
		return
	}

	t.inflightTasks[start.ID] = &Task{
		ID:        start.ID,
		ParentID:  start.ParentID,
		Kind:      start.Kind,
		What:      start.What,
		Where:     start.Where,
		StartTime: t.timeTeller.CurrentTime(),
	}
}

func (t *DBTracer) endTask(end TaskEnd) {
	task, ok := t.inflightTasks[end.ID]
	if !ok {
		return
	}

	task.EndTime = t.timeTeller.CurrentTime()
	delete(t.inflightTasks, end.ID)

	t.writer.Write(*task)
}

// Terminate writes the tasks that never finished, with their end time set to
// the current time, and flushes the writer. It can be registered as a
// simulation end handler.
func (t *DBTracer) Terminate() {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.timeTeller.CurrentTime()
	for id, task := range t.inflightTasks {
		task.EndTime = now
		t.writer.Write(*task)
		delete(t.inflightTasks, id)
	}

	t.writer.Flush()
}

// Handle implements sim.SimulationEndHandler.
func (t *DBTracer) Handle(_ sim.VTimeInCycle) {
	t.Terminate()
}
