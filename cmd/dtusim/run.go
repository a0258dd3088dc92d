package main

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/dtusim/config"
	"github.com/sarchlab/dtusim/monitoring"
	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/system"
	"github.com/sarchlab/dtusim/tracing"
	"github.com/sarchlab/dtusim/workload"
)

// flagKeys maps the configuration keys to the flags that override them.
var flagKeys = map[string]string{
	"log_level":             "log-level",
	"log_format":            "log-format",
	"parallel_ids":          "parallel-ids",
	"vm.translation":        "translation",
	"trace.enabled":         "trace",
	"trace.db_path":         "trace-db",
	"monitor.enabled":       "monitor",
	"monitor.port":          "monitor-port",
	"workload.commands":     "commands",
	"workload.max_size":     "max-size",
	"workload.seed":         "seed",
	"workload.abort_period": "abort-period",
}

const (
	maxSlotSize = 512
	numSlots    = 4
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic workload.",
	Long: "`run` builds a system of nodes connected in a ring, lets every " +
		"node read, write, and send messages to the next node, and prints " +
		"a summary.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := make(map[string]*pflag.Flag, len(flagKeys))
		for key, name := range flagKeys {
			flags[key] = cmd.Flag(name)
		}

		cfg, err := config.Load(configPath, config.Options{
			EnvFiles: envFiles,
			Flags:    flags,
		})
		if err != nil {
			return err
		}

		numNodes, _ := cmd.Flags().GetInt("nodes")

		return simulate(cfg, numNodes, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	f := runCmd.Flags()
	f.Int("nodes", 2, "number of nodes")
	f.Int("commands", 100, "number of commands over all nodes")
	f.Uint64("max-size", 4096, "largest read or write in bytes")
	f.Int64("seed", 1, "seed of the random commands")
	f.Uint64("abort-period", 0,
		"abort the local transfers of one node every this many cycles")
	f.Bool("translation", false, "translate local addresses with a page walker")
	f.Bool("trace", false, "record the tasks into a SQLite database")
	f.String("trace-db", "dtusim_trace",
		"trace database path, without the .sqlite3 suffix")
	f.Bool("monitor", false, "serve the monitoring API")
	f.Int("monitor-port", 32776, "port of the monitoring API")
	f.Bool("parallel-ids", false,
		"generate unique ids that do not depend on the simulation order")
}

type tracers struct {
	cmdTime  *tracing.AverageTimeTracer
	xferTags *tracing.TagCountTracer
	db       *tracing.DBTracer
	writer   *tracing.SQLiteTraceWriter
}

func attachTracers(
	cfg *config.Config,
	sys *system.System,
	logger zerolog.Logger,
) (*tracers, error) {
	t := &tracers{
		cmdTime:  tracing.NewAverageTimeTracer(sys.Engine, tracing.KindIs("cmd")),
		xferTags: tracing.NewTagCountTracer(tracing.KindIs("xfer")),
	}

	var domains []sim.Hookable
	domains = append(domains, sys.Fabric)

	for _, n := range sys.Nodes {
		n.DTU.AcceptHook(t.cmdTime)
		n.DTU.Xfer().AcceptHook(t.xferTags)

		domains = append(domains, n.DTU, n.DTU.Xfer(), n.Memory)
		if n.Walker != nil {
			domains = append(domains, n.Walker)
		}
	}

	if logger.GetLevel() <= zerolog.DebugLevel {
		logTracer := tracing.NewLogTracer(sys.Engine, logger, tracing.AllTasks)
		for _, d := range domains {
			d.AcceptHook(logTracer)
		}
	}

	if !cfg.Trace.Enabled {
		return t, nil
	}

	t.writer = tracing.NewSQLiteTraceWriter(cfg.Trace.DBPath)
	if err := t.writer.Init(); err != nil {
		return nil, err
	}

	t.db = tracing.NewDBTracer(sys.Engine, t.writer, tracing.AllTasks)
	for _, d := range domains {
		d.AcceptHook(t.db)
	}

	sys.Engine.RegisterSimulationEndHandler(t.db)

	return t, nil
}

func startMonitor(
	cfg *config.Config,
	sys *system.System,
	logger zerolog.Logger,
) (*monitoring.Monitor, error) {
	m := monitoring.NewMonitor().
		WithPortNumber(cfg.Monitor.Port).
		WithGatherer(sys.Registry).
		WithLogger(logger)

	m.RegisterEngine(sys.Engine)
	for _, n := range sys.Nodes {
		m.RegisterDevice(n.DTU)
	}

	if _, err := m.StartServer(); err != nil {
		return nil, err
	}

	return m, nil
}

func simulate(
	cfg *config.Config,
	numNodes int,
	out, errOut io.Writer,
) error {
	logger := cfg.Logger(errOut)

	if cfg.ParallelIDs {
		sim.UseParallelIDGenerator()
	}

	sys, err := system.Build(cfg, numNodes, logger)
	if err != nil {
		return err
	}

	t, err := attachTracers(cfg, sys, logger)
	if err != nil {
		return err
	}

	if logger.GetLevel() <= zerolog.TraceLevel {
		sys.Engine.AcceptHook(sim.NewEventLogger(logger))
	}

	b := workload.MakeBuilder().
		WithSystem(sys).
		WithCommands(cfg.Workload.Commands).
		WithMaxSize(cfg.Workload.MaxSize).
		WithSeed(cfg.Workload.Seed).
		WithSlots(min(maxSlotSize, cfg.DTU.MaxNocPacketSize), numSlots).
		WithAbortPeriod(sim.VTimeInCycle(cfg.Workload.AbortPeriod)).
		WithLogger(logger)

	if cfg.Monitor.Enabled {
		m, err := startMonitor(cfg, sys, logger)
		if err != nil {
			return err
		}
		defer m.StopServer()

		bar := m.CreateProgressBar("Workload", uint64(cfg.Workload.Commands))
		defer m.CompleteProgressBar(bar)

		b = b.WithProgress(bar)
	}

	driver, err := b.Build()
	if err != nil {
		return err
	}

	start := time.Now()

	driver.Start()
	if err := sys.Engine.Run(); err != nil {
		return errors.Wrap(err, "simulation failed")
	}

	sys.Engine.Finished()

	logger.Info().
		Uint64("cycles", uint64(sys.Engine.CurrentTime())).
		Dur("wall", time.Since(start)).
		Msg("simulation finished")

	return report(out, cfg.Clock(), sys, driver, t)
}

func report(
	out io.Writer,
	clock sim.Freq,
	sys *system.System,
	driver *workload.Driver,
	t *tracers,
) error {
	if err := driver.Summary().Write(out); err != nil {
		return err
	}

	now := sys.Engine.CurrentTime()
	fmt.Fprintf(out, "simulated cycles  %d (%.3g s at %.3g Hz)\n",
		now, clock.Seconds(now), float64(clock))
	fmt.Fprintf(out, "traced commands   %d (avg %.1f cycles)\n",
		t.cmdTime.TotalCount(), t.cmdTime.AverageTime())

	for _, name := range t.xferTags.TagNames() {
		fmt.Fprintf(out, "xfer tag %-8s %d\n", name, t.xferTags.TagCount(name))
	}

	for _, n := range sys.Nodes {
		s := n.DTU.Stats()
		x := n.DTU.Xfer().Stats()
		fmt.Fprintf(out,
			"%s: %d commands, %d errors, %d B read, %d B written, "+
				"%d msgs, %d delays, %d page faults, %d aborts\n",
			n.DTU.Name(), s.Commands, s.CommandErrors, x.BytesRead,
			x.BytesWritten, s.MsgsReceived, x.Delays, x.PageFaults, x.Aborts)
	}

	if t.writer != nil {
		fmt.Fprintf(out, "trace written to %s\n", t.writer.FileName())
	}

	if !driver.Done() {
		return errors.New("workload did not finish")
	}

	return nil
}
