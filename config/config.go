// Package config loads the parameters of a simulation from a YAML file, the
// environment, and .env files.
package config

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sarchlab/dtusim/dtu"
	"github.com/sarchlab/dtusim/mem/idealmemcontroller"
	"github.com/sarchlab/dtusim/noc"
	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/vm/walker"
)

// EnvPrefix is the prefix of the environment variables that override the
// configuration, e.g. DTUSIM_XFER_BLOCK_SIZE.
const EnvPrefix = "DTUSIM"

// ErrInvalid is wrapped by all validation problems.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all parameters of a simulation.
type Config struct {
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	ParallelIDs bool   `mapstructure:"parallel_ids"`

	// Freq is the clock frequency in Hz. It only converts cycles to seconds
	// in reports.
	Freq float64 `mapstructure:"freq"`

	Xfer     XferConfig     `mapstructure:"xfer"`
	DTU      DTUConfig      `mapstructure:"dtu"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	VM       VMConfig       `mapstructure:"vm"`
	NoC      NoCConfig      `mapstructure:"noc"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Trace    TraceConfig    `mapstructure:"trace"`
	Workload WorkloadConfig `mapstructure:"workload"`
}

// XferConfig configures the transfer unit.
type XferConfig struct {
	BlockSize  uint64 `mapstructure:"block_size"`
	NumBuffers int    `mapstructure:"num_buffers"`
	BufferSize uint64 `mapstructure:"buffer_size"`
}

// DTUConfig configures the device around the transfer unit.
type DTUConfig struct {
	NumEndpoints     int    `mapstructure:"num_endpoints"`
	MaxNocPacketSize uint64 `mapstructure:"max_noc_packet_size"`
}

// MemoryConfig configures the local memory of each node.
type MemoryConfig struct {
	Latency  uint64 `mapstructure:"latency"`
	Capacity uint64 `mapstructure:"capacity"`
}

// VMConfig configures address translation.
type VMConfig struct {
	Translation  bool   `mapstructure:"translation"`
	Log2PageSize uint64 `mapstructure:"log2_page_size"`
	NumTLBEntry  int    `mapstructure:"num_tlb_entry"`
	WalkLatency  uint64 `mapstructure:"walk_latency"`
}

// NoCConfig configures the network.
type NoCConfig struct {
	Latency       uint64 `mapstructure:"latency"`
	BytesPerCycle int    `mapstructure:"bytes_per_cycle"`
}

// MonitorConfig configures the monitoring server.
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TraceConfig configures task tracing.
type TraceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// WorkloadConfig configures the synthetic workload of the CLI.
type WorkloadConfig struct {
	Commands    int    `mapstructure:"commands"`
	MaxSize     uint64 `mapstructure:"max_size"`
	Seed        int64  `mapstructure:"seed"`
	AbortPeriod uint64 `mapstructure:"abort_period"`
}

// Options control where Load looks for values besides the config file.
type Options struct {
	// EnvFiles are .env files whose variables are added to the environment
	// before it is read. Missing files are skipped.
	EnvFiles []string

	// Flags override the file and the environment when they are set on the
	// command line. They are keyed by the configuration key, e.g.
	// "workload.commands".
	Flags map[string]*pflag.Flag
}

// Load reads the configuration. An empty configPath searches dtusim.yaml in
// the working directory.
func Load(configPath string, opts Options) (*Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	for key, flag := range opts.Flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, errors.Wrapf(err, "binding flag of %s", key)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	} else {
		v.SetConfigName("dtusim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}

	return nil
}

// Default returns the configuration without any file or environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("parallel_ids", false)
	v.SetDefault("freq", 1e9)

	v.SetDefault("xfer.block_size", 64)
	v.SetDefault("xfer.num_buffers", 4)
	v.SetDefault("xfer.buffer_size", 8192)

	v.SetDefault("dtu.num_endpoints", 16)
	v.SetDefault("dtu.max_noc_packet_size", 1024)

	v.SetDefault("memory.latency", 100)
	v.SetDefault("memory.capacity", 16*1024*1024)

	v.SetDefault("vm.translation", false)
	v.SetDefault("vm.log2_page_size", 12)
	v.SetDefault("vm.num_tlb_entry", 32)
	v.SetDefault("vm.walk_latency", 20)

	v.SetDefault("noc.latency", 10)
	v.SetDefault("noc.bytes_per_cycle", 16)

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.port", 32776)

	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.db_path", "dtusim_trace")

	v.SetDefault("workload.commands", 100)
	v.SetDefault("workload.max_size", 4096)
	v.SetDefault("workload.seed", 1)
	v.SetDefault("workload.abort_period", 0)
}

// Validate reports all problems of the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	problem := func(format string, args ...any) {
		result = multierror.Append(result,
			errors.Wrapf(ErrInvalid, format, args...))
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		problem("log level %q", c.LogLevel)
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		problem("log format %q is neither console nor json", c.LogFormat)
	}

	if c.Freq <= 0 {
		problem("freq %g must be positive", c.Freq)
	}

	if c.Xfer.BlockSize == 0 || c.Xfer.BlockSize&(c.Xfer.BlockSize-1) != 0 {
		problem("xfer.block_size %d is not a power of two", c.Xfer.BlockSize)
	}

	minBuffers := 1
	if c.VM.Translation {
		minBuffers = 2
	}

	if c.Xfer.NumBuffers < minBuffers {
		problem("xfer.num_buffers %d, need at least %d",
			c.Xfer.NumBuffers, minBuffers)
	}

	if c.DTU.NumEndpoints < 1 {
		problem("dtu.num_endpoints %d, need at least 1", c.DTU.NumEndpoints)
	}

	if c.DTU.MaxNocPacketSize == 0 ||
		c.DTU.MaxNocPacketSize > c.Xfer.BufferSize {
		problem("dtu.max_noc_packet_size %d must be in [1, %d]",
			c.DTU.MaxNocPacketSize, c.Xfer.BufferSize)
	}

	if c.Memory.Capacity == 0 {
		problem("memory.capacity must not be 0")
	}

	if c.VM.Log2PageSize < 10 || c.VM.Log2PageSize > 30 {
		problem("vm.log2_page_size %d must be in [10, 30]", c.VM.Log2PageSize)
	}

	if c.VM.NumTLBEntry < 1 {
		problem("vm.num_tlb_entry %d, need at least 1", c.VM.NumTLBEntry)
	}

	if c.NoC.BytesPerCycle < 1 {
		problem("noc.bytes_per_cycle %d, need at least 1", c.NoC.BytesPerCycle)
	}

	if c.Monitor.Enabled && (c.Monitor.Port < 1 || c.Monitor.Port > 65535) {
		problem("monitor.port %d", c.Monitor.Port)
	}

	if c.Trace.Enabled && c.Trace.DBPath == "" {
		problem("trace.db_path must be set when tracing")
	}

	return result.ErrorOrNil()
}

// Logger creates the logger the configuration asks for.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Clock returns the configured frequency.
func (c *Config) Clock() sim.Freq {
	return sim.Freq(c.Freq)
}

// DTUBuilder returns a device builder with the configured parameters. The
// engine, fabric, node, memory, and translator are left to the caller.
func (c *Config) DTUBuilder() dtu.Builder {
	return dtu.MakeBuilder().
		WithNumEndpoints(c.DTU.NumEndpoints).
		WithMaxNocPacketSize(c.DTU.MaxNocPacketSize).
		WithBlockSize(c.Xfer.BlockSize).
		WithNumBuffers(c.Xfer.NumBuffers).
		WithBufferSize(c.Xfer.BufferSize)
}

// MemoryBuilder returns a memory controller builder with the configured
// parameters.
func (c *Config) MemoryBuilder() idealmemcontroller.Builder {
	return idealmemcontroller.MakeBuilder().
		WithLatency(sim.VTimeInCycle(c.Memory.Latency)).
		WithNewStorage(c.Memory.Capacity)
}

// WalkerBuilder returns a page walker builder with the configured parameters.
func (c *Config) WalkerBuilder() walker.Builder {
	return walker.MakeBuilder().
		WithNumTLBEntry(c.VM.NumTLBEntry).
		WithWalkLatency(sim.VTimeInCycle(c.VM.WalkLatency))
}

// FabricBuilder returns a network builder with the configured parameters.
func (c *Config) FabricBuilder() noc.Builder {
	return noc.MakeBuilder().
		WithLatency(sim.VTimeInCycle(c.NoC.Latency)).
		WithBytesPerCycle(c.NoC.BytesPerCycle)
}
