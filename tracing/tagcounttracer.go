package tracing

import (
	"sync"

	"github.com/sarchlab/dtusim/sim"
)

// TagCountTracer counts how many times each tag is attached to the tasks that
// pass the filter.
type TagCountTracer struct {
	filter TaskFilter
	lock   sync.Mutex

	inflightTasks map[string]bool
	tagNames      []string
	tagCount      map[string]uint64
}

// NewTagCountTracer creates a new TagCountTracer.
func NewTagCountTracer(filter TaskFilter) *TagCountTracer {
	return &TagCountTracer{
		filter:        filter,
		inflightTasks: make(map[string]bool),
		tagCount:      make(map[string]uint64),
	}
}

// Func counts the tags of the traced tasks.
func (t *TagCountTracer) Func(ctx sim.HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch ctx.Pos {
	case HookPosTaskStart:
		task := ctx.Item.(TaskStart)
		if t.filter(task) {
			t.inflightTasks[task.ID] = true
		}
	case HookPosTaskTag:
		tag := ctx.Item.(TaskTag)
		if t.inflightTasks[tag.TaskID] {
			t.countTag(tag)
		}
	case HookPosTaskEnd:
		delete(t.inflightTasks, ctx.Item.(TaskEnd).ID)
	}
}

func (t *TagCountTracer) countTag(tag TaskTag) {
	if _, ok := t.tagCount[tag.What]; !ok {
		t.tagNames = append(t.tagNames, tag.What)
	}

	t.tagCount[tag.What]++
}

// TagNames returns all the tag names collected, in first-seen order.
func (t *TagCountTracer) TagNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.tagNames...)
}

// TagCount returns the number of times a tag was attached.
func (t *TagCountTracer) TagCount(tagName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.tagCount[tagName]
}
