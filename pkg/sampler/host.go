package sampler

import (
	"emperror.dev/errors"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/net"

	"github.com/voluzi/cloudvitals/pkg/metrics"
)

// NetCounters are cumulative network byte counters summed over all interfaces.
type NetCounters struct {
	BytesSent uint64
	BytesRecv uint64
}

// DiskCounters are cumulative disk I/O byte counters summed over all devices.
type DiskCounters struct {
	ReadBytes  uint64
	WriteBytes uint64
}

// HostReader reads raw host counters. Each method reports its own failure so
// that one unavailable metric does not hide the others.
type HostReader interface {
	CPUPercent() (float64, error)
	VirtualMemory() (metrics.Usage, error)
	SwapMemory() (metrics.Usage, error)
	DiskUsage(path string) (metrics.Usage, error)
	NetCounters() (NetCounters, error)
	DiskCounters() (DiskCounters, error)
}

type hostReader struct{}

// NewHostReader returns a HostReader backed by gopsutil.
func NewHostReader() HostReader {
	return hostReader{}
}

func (hostReader) CPUPercent() (float64, error) {
	pct, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, errors.New("no cpu usage reported")
	}
	return pct[0], nil
}

func (hostReader) VirtualMemory() (metrics.Usage, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return metrics.Usage{}, err
	}
	return metrics.Usage{Total: v.Total, Used: v.Used, Free: v.Free, Percent: v.UsedPercent}, nil
}

func (hostReader) SwapMemory() (metrics.Usage, error) {
	s, err := mem.SwapMemory()
	if err != nil {
		return metrics.Usage{}, err
	}
	return metrics.Usage{Total: s.Total, Used: s.Used, Free: s.Free, Percent: s.UsedPercent}, nil
}

func (hostReader) DiskUsage(path string) (metrics.Usage, error) {
	d, err := disk.Usage(path)
	if err != nil {
		return metrics.Usage{}, err
	}
	return metrics.Usage{Total: d.Total, Used: d.Used, Free: d.Free, Percent: d.UsedPercent}, nil
}

func (hostReader) NetCounters() (NetCounters, error) {
	stats, err := net.IOCounters(false)
	if err != nil {
		return NetCounters{}, err
	}
	var c NetCounters
	for _, s := range stats {
		c.BytesSent += s.BytesSent
		c.BytesRecv += s.BytesRecv
	}
	return c, nil
}

func (hostReader) DiskCounters() (DiskCounters, error) {
	stats, err := disk.IOCounters()
	if err != nil {
		return DiskCounters{}, err
	}
	var c DiskCounters
	for _, s := range stats {
		c.ReadBytes += s.ReadBytes
		c.WriteBytes += s.WriteBytes
	}
	return c, nil
}
