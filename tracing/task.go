package tracing

import "github.com/sarchlab/dtusim/sim"

// A list of hook poses for the hooks to apply to.
var (
	HookPosTaskStart = &sim.HookPos{Name: "HookPosTaskStart"}
	HookPosTaskTag   = &sim.HookPos{Name: "HookPosTaskTag"}
	HookPosTaskEnd   = &sim.HookPos{Name: "HookPosTaskEnd"}
)

// TaskStart is the data that is passed to the hook when a task starts.
type TaskStart struct {
	ID       string
	ParentID string
	Kind     string
	What     string
	Where    string
}

// TaskTag is data attached to a task to provide more information about the
// task.
type TaskTag struct {
	TaskID string
	What   string
	Detail string
}

// TaskEnd is the data that is passed to the hook when a task ends.
type TaskEnd struct {
	ID string
}

// A Task is a finished or in-flight task as seen by a tracer.
type Task struct {
	ID        string           `json:"id"`
	ParentID  string           `json:"parent_id"`
	Kind      string           `json:"kind"`
	What      string           `json:"what"`
	Where     string           `json:"where"`
	StartTime sim.VTimeInCycle `json:"start_time"`
	EndTime   sim.VTimeInCycle `json:"end_time"`
	Tags      []TaskTag        `json:"tags"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t TaskStart) bool

// AllTasks is a TaskFilter that accepts every task.
func AllTasks(TaskStart) bool {
	return true
}

// KindIs returns a TaskFilter that accepts the tasks of the given kind.
func KindIs(kind string) TaskFilter {
	return func(t TaskStart) bool {
		return t.Kind == kind
	}
}
