// Package workload drives a system with a synthetic mix of remote reads,
// remote writes, and messages.
package workload

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/dtu"
	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/dtu/xfer"
	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/system"
)

// Progress receives the progress of the workload.
type Progress interface {
	IncrementInProgress(amount uint64)
	MoveInProgressToFinished(amount uint64)
}

// Summary is what a finished workload reports.
type Summary struct {
	Commands    int
	Rejected    int
	Messages    int
	Bytes       uint64
	TotalCycles uint64
	MaxCycles   uint64
	Aborted     int
	ByOp        map[string]int
	ByResult    map[string]int
}

// AverageCycles returns the average duration of a command.
func (s Summary) AverageCycles() float64 {
	if s.Commands == 0 {
		return 0
	}

	return float64(s.TotalCycles) / float64(s.Commands)
}

// Write prints the summary as a table.
func (s Summary) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "commands\t%d\n", s.Commands)
	fmt.Fprintf(tw, "rejected\t%d\n", s.Rejected)
	fmt.Fprintf(tw, "messages fetched\t%d\n", s.Messages)
	fmt.Fprintf(tw, "bytes\t%d\n", s.Bytes)
	fmt.Fprintf(tw, "average cycles\t%.1f\n", s.AverageCycles())
	fmt.Fprintf(tw, "max cycles\t%d\n", s.MaxCycles)
	fmt.Fprintf(tw, "transfers aborted\t%d\n", s.Aborted)

	for _, k := range sortedKeys(s.ByOp) {
		fmt.Fprintf(tw, "op %s\t%d\n", k, s.ByOp[k])
	}

	for _, k := range sortedKeys(s.ByResult) {
		fmt.Fprintf(tw, "result %s\t%d\n", k, s.ByResult[k])
	}

	return tw.Flush()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

type issueEvent struct {
	sim.EventBase
	node int
}

type abortEvent struct {
	sim.EventBase
}

// A Driver issues random commands on every node of a system. A node gets its
// next command one cycle after its previous command is done.
type Driver struct {
	sys         *system.System
	rand        *rand.Rand
	total       int
	maxSize     uint64
	slotSize    uint64
	abortPeriod sim.VTimeInCycle
	progress    Progress
	logger      zerolog.Logger

	nodeOf    map[*dtu.Device]int
	issued    int
	finished  int
	nextAbort int
	summary   Summary
}

// Start hooks the driver to the devices and schedules the first commands.
func (d *Driver) Start() {
	now := d.sys.Engine.CurrentTime()

	for i, n := range d.sys.Nodes {
		n.DTU.AcceptHook(d)
		d.nodeOf[n.DTU] = i
		d.scheduleIssue(i, now)
	}

	if d.abortPeriod > 0 {
		d.sys.Engine.Schedule(&abortEvent{
			EventBase: sim.MakeEventBase(now+d.abortPeriod, d),
		})
	}
}

// Done returns true once all the commands have finished.
func (d *Driver) Done() bool {
	return d.finished >= d.total
}

// Summary returns what the workload has done so far.
func (d *Driver) Summary() Summary {
	return d.summary
}

func (d *Driver) scheduleIssue(node int, t sim.VTimeInCycle) {
	d.sys.Engine.Schedule(&issueEvent{
		EventBase: sim.MakeEventBase(t, d),
		node:      node,
	})
}

// Handle issues commands and aborts.
func (d *Driver) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *issueEvent:
		d.issue(e.node)
	case *abortEvent:
		d.abort()
	default:
		log.Panicf("cannot handle event of %T", e)
	}

	return nil
}

func (d *Driver) issue(node int) {
	if d.issued >= d.total {
		return
	}

	dev := d.sys.Nodes[node].DTU
	cmd := d.randomCommand()

	d.issued++
	if d.progress != nil {
		d.progress.IncrementInProgress(1)
	}

	if err := dev.ExecCommand(cmd); err != nil {
		d.logger.Warn().Err(err).Str("dev", dev.Name()).Msg("command rejected")

		d.summary.Rejected++
		d.complete()
		d.scheduleIssue(node, d.sys.Engine.CurrentTime()+1)
	}
}

func (d *Driver) randomCommand() dtu.Command {
	op := dtu.Opcode(d.rand.Intn(3))

	if op == dtu.CmdSend {
		size := 1 + uint64(d.rand.Int63n(int64(d.slotSize-protocol.HeaderSize)))

		return dtu.Command{
			Op:        dtu.CmdSend,
			EP:        system.SendEP,
			LocalAddr: system.LocalBase + d.randomOffset(system.LocalSize, size),
			Size:      size,
			ReplyEP:   system.RecvEP,
			Label:     d.rand.Uint64(),
		}
	}

	size := 1 + uint64(d.rand.Int63n(int64(d.maxSize)))

	return dtu.Command{
		Op:        op,
		EP:        system.MemEP,
		LocalAddr: system.LocalBase + d.randomOffset(system.LocalSize, size),
		Size:      size,
		Offset:    d.randomOffset(system.ExportSize, size),
	}
}

func (d *Driver) randomOffset(window, size uint64) uint64 {
	return uint64(d.rand.Int63n(int64(window - size + 1)))
}

func (d *Driver) abort() {
	if d.Done() {
		return
	}

	n := d.sys.Nodes[d.nextAbort%len(d.sys.Nodes)]
	d.nextAbort++

	d.summary.Aborted += n.DTU.Abort(xfer.AbortLocal, n.DTU.VPE(), true)

	d.sys.Engine.Schedule(&abortEvent{
		EventBase: sim.MakeEventBase(
			d.sys.Engine.CurrentTime()+d.abortPeriod, d),
	})
}

// Func records finished commands and issues the next ones.
func (d *Driver) Func(ctx sim.HookCtx) {
	if ctx.Pos != dtu.HookPosCommandDone {
		return
	}

	dev := ctx.Domain.(*dtu.Device)
	node := d.nodeOf[dev]
	done := ctx.Item.(dtu.CommandDone)

	d.summary.Commands++
	d.summary.ByOp[done.Command.Op.String()]++
	d.summary.ByResult[done.Result.String()]++
	d.summary.TotalCycles += uint64(done.Cycles)
	d.summary.MaxCycles = max(d.summary.MaxCycles, uint64(done.Cycles))

	if done.Result.Ok() {
		d.summary.Bytes += done.Command.Size
	}

	if done.Command.Op == dtu.CmdSend && done.Result.Ok() {
		d.consumeMessage(d.sys.Peer(node).DTU)
	}

	d.complete()
	d.scheduleIssue(node, d.sys.Engine.CurrentTime()+1)
}

func (d *Driver) consumeMessage(receiver *dtu.Device) {
	addr, err := receiver.FetchMessage(system.RecvEP)
	if err != nil {
		d.logger.Warn().Err(err).Str("dev", receiver.Name()).
			Msg("no message after a successful send")
		return
	}

	if err := receiver.AckMessage(system.RecvEP, addr); err != nil {
		log.Panicf("acknowledging message at %#x: %v", addr, err)
	}

	d.summary.Messages++
}

func (d *Driver) complete() {
	d.finished++
	if d.progress != nil {
		d.progress.MoveInProgressToFinished(1)
	}
}
