package dtu

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/dtu/xfer"
	"github.com/sarchlab/dtusim/mem"
	"github.com/sarchlab/dtusim/mem/idealmemcontroller"
	"github.com/sarchlab/dtusim/noc"
	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/vm"
	"github.com/sarchlab/dtusim/vm/walker"
)

type doneRecorder struct {
	done []CommandDone
	then func(CommandDone)
}

func (r *doneRecorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosCommandDone {
		return
	}

	done := ctx.Item.(CommandDone)
	r.done = append(r.done, done)

	if r.then != nil {
		r.then(done)
	}
}

type callbackEvent struct {
	sim.EventBase
}

type callbackHandler struct {
	f func()
}

func (h *callbackHandler) Handle(sim.Event) error {
	h.f()
	return nil
}

func scheduleAt(engine sim.EventScheduler, t sim.VTimeInCycle, f func()) {
	engine.Schedule(&callbackEvent{
		EventBase: sim.MakeEventBase(t, &callbackHandler{f: f}),
	})
}

func pattern(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = seed + byte(i*13)
	}

	return data
}

const (
	memEP  = 0
	sendEP = 1
	recvEP = 2
	vpe    = protocol.VPEID(1)
)

var _ = Describe("Device", func() {
	var (
		engine   *sim.SerialEngine
		fabric   *noc.Fabric
		mem1     *idealmemcontroller.Comp
		mem2     *idealmemcontroller.Comp
		dev1     *Device
		dev2     *Device
		recorder *doneRecorder
	)

	buildNode := func(
		name string,
		node noc.NodeID,
		m *idealmemcontroller.Comp,
		translator xfer.Translator,
	) *Device {
		b := MakeBuilder().
			WithEngine(engine).
			WithFabric(fabric).
			WithNode(node).
			WithMemory(m).
			WithVPE(vpe)
		if translator != nil {
			b = b.WithTranslator(translator)
		}

		d, err := b.Build(name)
		Expect(err).NotTo(HaveOccurred())

		return d
	}

	newMemory := func(name string) *idealmemcontroller.Comp {
		return idealmemcontroller.MakeBuilder().
			WithEngine(engine).
			WithLatency(100).
			WithNewStorage(1 * mem.MB).
			Build(name)
	}

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		fabric = noc.MakeBuilder().WithEngine(engine).Build("NoC")
		mem1 = newMemory("Node1.Mem")
		mem2 = newMemory("Node2.Mem")
		recorder = &doneRecorder{}
	})

	Context("with physical addressing", func() {
		BeforeEach(func() {
			dev1 = buildNode("Node1.DTU", 1, mem1, nil)
			dev2 = buildNode("Node2.DTU", 2, mem2, nil)
			dev1.AcceptHook(recorder)

			Expect(dev1.Endpoints().ConfigureMemory(memEP, MemEndpoint{
				TargetNode: 2,
				RemoteAddr: 0x10000,
				RemoteSize: 0x10000,
				Perm:       PermRead | PermWrite,
				VPE:        vpe,
			})).To(Succeed())
			Expect(dev1.Endpoints().ConfigureSend(sendEP, SendEndpoint{
				TargetNode: 2,
				TargetEP:   recvEP,
				Label:      0xabc,
				MaxMsgSize: 512,
				VPE:        vpe,
			})).To(Succeed())
			Expect(dev2.Endpoints().ConfigureRecv(recvEP, RecvEndpoint{
				BufAddr:   0x8000,
				SlotSize:  256,
				SlotCount: 2,
			})).To(Succeed())
		})

		It("should write local memory to the remote node in parts", func() {
			data := pattern(3000, 1)
			Expect(mem1.Storage.Write(0x1000, data)).To(Succeed())

			Expect(dev1.ExecCommand(Command{
				Op:        CmdWrite,
				EP:        memEP,
				LocalAddr: 0x1000,
				Size:      3000,
				Offset:    0x100,
			})).To(Succeed())
			Expect(dev1.Busy()).To(BeTrue())
			Expect(engine.Run()).To(Succeed())

			Expect(recorder.done).To(HaveLen(1))
			Expect(recorder.done[0].Result).To(Equal(protocol.ErrNone))
			Expect(mem2.Storage.Read(0x10100, 3000)).To(Equal(data))
			Expect(dev1.Busy()).To(BeFalse())
			Expect(dev1.Stats().WrittenBytes).To(Equal(uint64(3000)))
			Expect(dev2.Stats().ReceivedBytes).To(Equal(uint64(3000)))
			Expect(dev2.Xfer().Stats().Writes).To(Equal(uint64(3)))
		})

		It("should read remote memory into local memory in parts", func() {
			data := pattern(2500, 7)
			Expect(mem2.Storage.Write(0x10040, data)).To(Succeed())

			Expect(dev1.ExecCommand(Command{
				Op:        CmdRead,
				EP:        memEP,
				LocalAddr: 0x4000,
				Size:      2500,
				Offset:    0x40,
			})).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			Expect(recorder.done).To(HaveLen(1))
			Expect(recorder.done[0].Result).To(Equal(protocol.ErrNone))
			Expect(recorder.done[0].Cycles).To(BeNumerically(">", 0))
			Expect(mem1.Storage.Read(0x4000, 2500)).To(Equal(data))
			Expect(dev1.Xfer().Stats().Writes).To(Equal(uint64(3)))
			Expect(dev2.Xfer().Stats().Reads).To(Equal(uint64(3)))
		})

		It("should deliver a message into a receive slot", func() {
			data := pattern(100, 3)
			Expect(mem1.Storage.Write(0x2000, data)).To(Succeed())

			Expect(dev1.ExecCommand(Command{
				Op:        CmdSend,
				EP:        sendEP,
				LocalAddr: 0x2000,
				Size:      100,
				ReplyEP:   5,
				Label:     0x77,
			})).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			Expect(recorder.done).To(HaveLen(1))
			Expect(recorder.done[0].Result).To(Equal(protocol.ErrNone))

			addr, err := dev2.FetchMessage(recvEP)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).To(Equal(uint64(0x8000)))

			raw, err := mem2.Storage.Read(addr, protocol.HeaderSize+100)
			Expect(err).NotTo(HaveOccurred())

			header, err := protocol.DecodeMessageHeader(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(header.SenderNode).To(Equal(uint16(1)))
			Expect(header.SenderEP).To(Equal(uint8(sendEP)))
			Expect(header.ReplyEP).To(Equal(uint8(5)))
			Expect(header.Length).To(Equal(uint16(100)))
			Expect(header.Label).To(Equal(uint64(0xabc)))
			Expect(header.ReplyLabel).To(Equal(uint64(0x77)))
			Expect(raw[protocol.HeaderSize:]).To(Equal(data))

			_, err = dev2.FetchMessage(recvEP)
			Expect(err).To(MatchError(ErrNoMessage))
			Expect(dev2.AckMessage(recvEP, addr)).To(Succeed())
			Expect(dev2.Stats().MsgsReceived).To(Equal(uint64(1)))
		})

		It("should drop messages when all slots are taken", func() {
			Expect(dev2.Endpoints().ConfigureRecv(recvEP, RecvEndpoint{
				BufAddr:   0x8000,
				SlotSize:  256,
				SlotCount: 1,
			})).To(Succeed())

			send := Command{Op: CmdSend, EP: sendEP, LocalAddr: 0x2000, Size: 32}
			recorder.then = func(done CommandDone) {
				if len(recorder.done) == 1 {
					Expect(dev1.ExecCommand(send)).To(Succeed())
				}
			}

			Expect(dev1.ExecCommand(send)).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			Expect(recorder.done).To(HaveLen(2))
			Expect(recorder.done[0].Result).To(Equal(protocol.ErrNone))
			Expect(recorder.done[1].Result).To(Equal(protocol.ErrAbort))
			Expect(dev2.Stats().MsgsDropped).To(Equal(uint64(1)))
		})

		It("should reject requests for another VPE", func() {
			dev2.SetVPE(5)

			Expect(dev1.ExecCommand(Command{
				Op:        CmdWrite,
				EP:        memEP,
				LocalAddr: 0x1000,
				Size:      64,
			})).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			Expect(recorder.done[0].Result).To(Equal(protocol.ErrDestinationGone))
			Expect(dev2.Stats().WrongVPE).To(Equal(uint64(1)))
			Expect(mem2.NumWrite()).To(BeZero())
			Expect(dev1.Stats().CommandErrors).To(Equal(uint64(1)))
		})

		It("should report aborted transfers as gone without a VPE", func() {
			Expect(dev1.ExecCommand(Command{
				Op:        CmdWrite,
				EP:        memEP,
				LocalAddr: 0x1000,
				Size:      1024,
			})).To(Succeed())

			var aborted int
			scheduleAt(engine, 2500, func() {
				dev2.SetVPE(protocol.InvalidVPE)
				aborted = dev2.Abort(xfer.AbortRemote, 0, true)
			})

			Expect(engine.Run()).To(Succeed())

			Expect(aborted).To(Equal(1))
			Expect(recorder.done[0].Result).To(Equal(protocol.ErrDestinationGone))
		})

		It("should abort a remote transfer", func() {
			Expect(dev1.ExecCommand(Command{
				Op:        CmdWrite,
				EP:        memEP,
				LocalAddr: 0x1000,
				Size:      1024,
			})).To(Succeed())

			var aborted int
			scheduleAt(engine, 2500, func() {
				aborted = dev2.Abort(xfer.AbortRemote, vpe, false)
			})

			Expect(engine.Run()).To(Succeed())

			Expect(aborted).To(Equal(1))
			Expect(recorder.done[0].Result).To(Equal(protocol.ErrAbort))
			Expect(dev2.Xfer().Stats().Aborts).To(Equal(uint64(1)))
		})

		It("should finish empty commands right away", func() {
			Expect(dev1.ExecCommand(Command{Op: CmdRead, EP: memEP})).To(Succeed())
			Expect(recorder.done).To(HaveLen(1))
			Expect(dev1.Busy()).To(BeFalse())
		})

		DescribeTable("rejected commands",
			func(cmd Command, expected error) {
				err := dev1.ExecCommand(cmd)

				Expect(err).To(MatchError(expected))
				Expect(dev1.Busy()).To(BeFalse())
			},
			Entry("invalid endpoint",
				Command{Op: CmdRead, EP: 99, Size: 8}, ErrInvalidEndpoint),
			Entry("wrong endpoint kind",
				Command{Op: CmdRead, EP: sendEP, Size: 8}, ErrInvalidEndpoint),
			Entry("out of the window",
				Command{Op: CmdWrite, EP: memEP, Size: 16, Offset: 0xfff8},
				ErrOutOfBounds),
			Entry("empty message",
				Command{Op: CmdSend, EP: sendEP}, ErrInvalidCommand),
			Entry("message too large",
				Command{Op: CmdSend, EP: sendEP, Size: 500}, ErrMsgTooLarge),
		)

		It("should reject reads without permission", func() {
			Expect(dev1.Endpoints().ConfigureMemory(3, MemEndpoint{
				TargetNode: 2,
				RemoteSize: 0x1000,
				Perm:       PermWrite,
			})).To(Succeed())

			err := dev1.ExecCommand(Command{Op: CmdRead, EP: 3, Size: 8})
			Expect(err).To(MatchError(ErrNoPermission))
		})

		It("should run one command at a time", func() {
			cmd := Command{Op: CmdWrite, EP: memEP, LocalAddr: 0x1000, Size: 64}

			Expect(dev1.ExecCommand(cmd)).To(Succeed())
			Expect(dev1.ExecCommand(cmd)).To(MatchError(ErrBusy))
		})
	})

	Context("with virtual addressing", func() {
		var (
			pageTable vm.PageTable
			walker2   *walker.Walker
		)

		BeforeEach(func() {
			pageTable = vm.NewPageTable(12)
		})

		buildWalker := func(handler walker.FaultHandler) {
			b := walker.MakeBuilder().
				WithEngine(engine).
				WithPageTable(pageTable).
				WithPID(1)
			if handler != nil {
				b = b.WithFaultHandler(handler)
			}

			walker2 = b.Build("Node2.Walker")
			dev1 = buildNode("Node1.DTU", 1, mem1, nil)
			dev2 = buildNode("Node2.DTU", 2, mem2, walker2)
			dev1.AcceptHook(recorder)

			Expect(dev1.Endpoints().ConfigureMemory(memEP, MemEndpoint{
				TargetNode: 2,
				RemoteAddr: 0x40000000,
				RemoteSize: 0x10000,
				Perm:       PermRead | PermWrite,
				VPE:        vpe,
			})).To(Succeed())
		}

		It("should map pages on demand", func() {
			pager := vm.NewPager(pageTable, 0x20000, 0x30000,
				vm.AccessRead|vm.AccessWrite|vm.AccessInternal)
			buildWalker(pager)

			data := pattern(512, 9)
			Expect(mem1.Storage.Write(0x1000, data)).To(Succeed())

			Expect(dev1.ExecCommand(Command{
				Op:        CmdWrite,
				EP:        memEP,
				LocalAddr: 0x1000,
				Size:      512,
				Offset:    0xf00,
			})).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			Expect(recorder.done[0].Result).To(Equal(protocol.ErrNone))
			Expect(pager.NumMapped()).To(Equal(uint64(2)))
			Expect(mem2.Storage.Read(0x20f00, 256)).To(Equal(data[:256]))
			Expect(mem2.Storage.Read(0x21000, 256)).To(Equal(data[256:]))
			Expect(walker2.NumFaults()).To(Equal(uint64(2)))
		})

		It("should fail no-pagefault commands on unmapped pages", func() {
			buildWalker(nil)

			Expect(dev1.ExecCommand(Command{
				Op:        CmdRead,
				EP:        memEP,
				LocalAddr: 0x1000,
				Size:      64,
				Flags:     CmdNoPageFault,
			})).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			Expect(recorder.done[0].Result).To(Equal(protocol.ErrPageFault))
			Expect(mem2.NumRead()).To(BeZero())
			Expect(dev2.Xfer().Stats().PageFaultAborts).To(Equal(uint64(1)))
		})
	})
})
