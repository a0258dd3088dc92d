// Package tracing records what the simulated components are doing as tasks
// that start, get tagged, and end.
package tracing

import "github.com/sarchlab/dtusim/sim"

// NamedHookable represents something that has a name and can be hooked.
type NamedHookable interface {
	sim.Named
	sim.Hookable
	InvokeHook(sim.HookCtx)
}

// StartTask notifies the hooks that hook to the domain about the start of a
// task.
func StartTask(
	id string,
	parentID string,
	domain NamedHookable,
	kind string,
	what string,
) {
	if domain.NumHooks() == 0 {
		return
	}

	if id == "" || kind == "" || what == "" {
		panic("task id, kind, and what must not be empty")
	}

	domain.InvokeHook(sim.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskStart,
		Item: TaskStart{
			ID:       id,
			ParentID: parentID,
			Kind:     kind,
			What:     what,
			Where:    domain.Name(),
		},
	})
}

// TagTask attaches a piece of information to an in-flight task.
func TagTask(
	id string,
	domain NamedHookable,
	what string,
	detail string,
) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(sim.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskTag,
		Item: TaskTag{
			TaskID: id,
			What:   what,
			Detail: detail,
		},
	})
}

// EndTask notifies the hooks about the end of a task.
func EndTask(
	id string,
	domain NamedHookable,
) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(sim.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskEnd,
		Item:   TaskEnd{ID: id},
	})
}
