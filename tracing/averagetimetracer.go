package tracing

import (
	"sync"

	"github.com/sarchlab/dtusim/sim"
)

// AverageTimeTracer can collect the total and average time of executing a
// certain type of task. If the execution of two tasks overlaps, this tracer
// will simply add the two task processing time together.
type AverageTimeTracer struct {
	timeTeller    sim.TimeTeller
	filter        TaskFilter
	lock          sync.Mutex
	inflightTasks map[string]sim.VTimeInCycle
	totalTime     sim.VTimeInCycle
	taskCount     uint64
}

// NewAverageTimeTracer creates a new AverageTimeTracer.
func NewAverageTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *AverageTimeTracer {
	return &AverageTimeTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]sim.VTimeInCycle),
	}
}

// Func records the start and end of tasks.
func (t *AverageTimeTracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case HookPosTaskStart:
		t.startTask(ctx.Item.(TaskStart))
	case HookPosTaskEnd:
		t.endTask(ctx.Item.(TaskEnd))
	}
}

// TotalTime returns the total time that has been spent on the traced tasks.
func (t *AverageTimeTracer) TotalTime() sim.VTimeInCycle {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalTime
}

// AverageTime returns the average time of the finished tasks, in cycles.
func (t *AverageTimeTracer) AverageTime() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.taskCount == 0 {
		return 0
	}

	return float64(t.totalTime) / float64(t.taskCount)
}

// TotalCount returns the number of finished tasks.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

func (t *AverageTimeTracer) startTask(task TaskStart) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[task.ID] = t.timeTeller.CurrentTime()
	t.lock.Unlock()
}

func (t *AverageTimeTracer) endTask(task TaskEnd) {
	t.lock.Lock()
	defer t.lock.Unlock()

	startTime, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	t.totalTime += t.timeTeller.CurrentTime() - startTime
	t.taskCount++

	delete(t.inflightTasks, task.ID)
}
