package stress

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
)

// Process is a handle on a running load generator.
type Process interface {
	Pid() int
	// IsAlive reports whether the process has not exited yet. It never blocks.
	IsAlive() bool
	// Terminate asks the process to exit gracefully without waiting for it.
	Terminate() error
	Stats() (*ProcessStats, error)
}

// Spawner launches load generators.
type Spawner interface {
	Spawn(class string, duration time.Duration) (Process, error)
}

type ProcessStats struct {
	CPUTimeSec float64 `json:"cpu_time_sec"`     // total CPU time in seconds
	MemoryRSS  uint64  `json:"memory_rss_bytes"` // resident memory usage
}

// ExecSpawner runs an executable as `<command> <class> <duration-seconds>`.
type ExecSpawner struct {
	command string
}

func NewExecSpawner(command string) *ExecSpawner {
	return &ExecSpawner{command: command}
}

func (e *ExecSpawner) Spawn(class string, duration time.Duration) (Process, error) {
	cmd := exec.Command(e.command, class, FormatSeconds(duration))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	// The child is not reaped until wait runs below, so it is guaranteed to
	// still be visible here.
	p := &execProcess{
		class: class,
		cmd:   cmd,
		done:  make(chan struct{}),
	}
	if proc, err := process.NewProcess(int32(cmd.Process.Pid)); err == nil {
		p.proc = proc
	} else {
		log.WithField("pid", cmd.Process.Pid).Warnf("could not inspect stress process: %v", err)
	}
	go p.wait()
	return p, nil
}

// processInfo is the part of gopsutil's process handle Stats reads from.
type processInfo interface {
	Times() (*cpu.TimesStat, error)
	MemoryInfo() (*process.MemoryInfoStat, error)
}

type execProcess struct {
	class string
	cmd   *exec.Cmd
	proc  processInfo
	done  chan struct{}
	err   error
}

// wait only records the exit; registry cleanup happens lazily on the next
// operation for the class.
func (p *execProcess) wait() {
	p.err = p.cmd.Wait()
	close(p.done)

	entry := log.WithFields(log.Fields{
		"class": p.class,
		"pid":   p.Pid(),
	})
	if p.err != nil {
		entry.Infof("stress process exited: %v", p.err)
	} else {
		entry.Info("stress process exited")
	}
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) IsAlive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Terminate() error {
	if !p.IsAlive() {
		return nil
	}
	err := p.cmd.Process.Signal(syscall.SIGTERM)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Stats reads CPU time and resident memory of the process.
func (p *execProcess) Stats() (*ProcessStats, error) {
	if p.proc == nil || !p.IsAlive() {
		return nil, errors.New("process is not running")
	}

	times, err := p.proc.Times()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get CPU times")
	}

	mem, err := p.proc.MemoryInfo()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get memory info")
	}

	// The pid may have been reaped and reused while reading.
	if !p.IsAlive() {
		return nil, errors.New("process exited while reading stats")
	}

	return &ProcessStats{
		CPUTimeSec: times.User + times.System,
		MemoryRSS:  mem.RSS,
	}, nil
}

// FormatSeconds renders d as a plain number of seconds, e.g. "20" or "1.5".
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
