package agent

import (
	"time"

	"github.com/voluzi/cloudvitals/pkg/sampler"
	"github.com/voluzi/cloudvitals/pkg/stress"
)

const (
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 5000
	DefaultInterval      = sampler.DefaultInterval
	DefaultDiskPath      = "/"
	DefaultPipePath      = "/tmp/cloudvitals.fifo"
	DefaultStressCommand = "/usr/local/bin/cloudvitals-stress"
	DefaultStressHistory = stress.DefaultHistoryTTL
)

func defaultOptions() *Options {
	return &Options{
		Host:          DefaultHost,
		Port:          DefaultPort,
		Interval:      DefaultInterval,
		DiskPath:      DefaultDiskPath,
		PipePath:      DefaultPipePath,
		CreateFifo:    true,
		StressCommand: DefaultStressCommand,
		StressHistory: DefaultStressHistory,
	}
}

type Options struct {
	Host          string
	Port          int
	Interval      time.Duration
	DiskPath      string
	PipePath      string
	CreateFifo    bool
	StressCommand string
	StressHistory time.Duration

	// HostReader and Spawner replace the gopsutil reader and the exec based
	// spawner when set.
	HostReader sampler.HostReader
	Spawner    stress.Spawner
}

type Option func(*Options)

func WithHost(s string) Option {
	return func(opts *Options) {
		opts.Host = s
	}
}

func WithPort(v int) Option {
	return func(opts *Options) {
		opts.Port = v
	}
}

func WithInterval(d time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = d
	}
}

func WithDiskPath(path string) Option {
	return func(opts *Options) {
		opts.DiskPath = path
	}
}

// WithPipePath sets the fifo samples are published to. An empty path disables
// publishing.
func WithPipePath(path string) Option {
	return func(opts *Options) {
		opts.PipePath = path
	}
}

func CreateFifo(create bool) Option {
	return func(opts *Options) {
		opts.CreateFifo = create
	}
}

func WithStressCommand(command string) Option {
	return func(opts *Options) {
		opts.StressCommand = command
	}
}

func WithStressHistory(ttl time.Duration) Option {
	return func(opts *Options) {
		opts.StressHistory = ttl
	}
}

func WithHostReader(r sampler.HostReader) Option {
	return func(opts *Options) {
		opts.HostReader = r
	}
}

func WithSpawner(s stress.Spawner) Option {
	return func(opts *Options) {
		opts.Spawner = s
	}
}
