package metrics

import (
	"math"
	"time"

	"github.com/goccy/go-json"
)

// Usage describes a capacity-like resource (memory, swap, disk space).
type Usage struct {
	Total   uint64
	Used    uint64
	Free    uint64
	Percent float64
}

// Sample is a single host resource snapshot. It is a plain value: copying it
// yields an independent sample.
type Sample struct {
	// Tick is the sequence number of the sampling cycle that produced this
	// sample. Zero means no cycle has completed yet.
	Tick      uint64
	Timestamp time.Time

	CPUPercent float64
	Memory     Usage
	Swap       Usage
	DiskSpace  Usage

	NetworkBytesPerSec   float64
	DiskReadBytesPerSec  float64
	DiskWriteBytesPerSec float64
}

// wireSample is the flat JSON layout served over HTTP and written to the pipe.
// The network_average_bytes_per_sec, disk_read and disk_write keys are kept
// for dashboards that predate the explicit rate names.
type wireSample struct {
	Tick      uint64  `json:"tick"`
	Timestamp float64 `json:"timestamp"`

	CPUPercent float64 `json:"cpu_percent"`

	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryFree    uint64  `json:"memory_free"`
	MemoryPercent float64 `json:"memory_percent"`

	SwapTotal   uint64  `json:"swap_total"`
	SwapUsed    uint64  `json:"swap_used"`
	SwapFree    uint64  `json:"swap_free"`
	SwapPercent float64 `json:"swap_percent"`

	DiskTotal   uint64  `json:"disk_total"`
	DiskUsed    uint64  `json:"disk_used"`
	DiskFree    uint64  `json:"disk_free"`
	DiskPercent float64 `json:"disk_percent"`

	NetworkBytesPerSec   float64 `json:"network_bytes_per_sec"`
	DiskReadBytesPerSec  float64 `json:"disk_read_bytes_per_sec"`
	DiskWriteBytesPerSec float64 `json:"disk_write_bytes_per_sec"`

	NetworkAverageBytesPerSec float64 `json:"network_average_bytes_per_sec"`
	DiskRead                  float64 `json:"disk_read"`
	DiskWrite                 float64 `json:"disk_write"`
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSample{
		Tick:                      s.Tick,
		Timestamp:                 unixSeconds(s.Timestamp),
		CPUPercent:                s.CPUPercent,
		MemoryTotal:               s.Memory.Total,
		MemoryUsed:                s.Memory.Used,
		MemoryFree:                s.Memory.Free,
		MemoryPercent:             s.Memory.Percent,
		SwapTotal:                 s.Swap.Total,
		SwapUsed:                  s.Swap.Used,
		SwapFree:                  s.Swap.Free,
		SwapPercent:               s.Swap.Percent,
		DiskTotal:                 s.DiskSpace.Total,
		DiskUsed:                  s.DiskSpace.Used,
		DiskFree:                  s.DiskSpace.Free,
		DiskPercent:               s.DiskSpace.Percent,
		NetworkBytesPerSec:        s.NetworkBytesPerSec,
		DiskReadBytesPerSec:       s.DiskReadBytesPerSec,
		DiskWriteBytesPerSec:      s.DiskWriteBytesPerSec,
		NetworkAverageBytesPerSec: s.NetworkBytesPerSec,
		DiskRead:                  s.DiskReadBytesPerSec,
		DiskWrite:                 s.DiskWriteBytesPerSec,
	})
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	var w wireSample
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Sample{
		Tick:                 w.Tick,
		Timestamp:            fromUnixSeconds(w.Timestamp),
		CPUPercent:           w.CPUPercent,
		Memory:               Usage{Total: w.MemoryTotal, Used: w.MemoryUsed, Free: w.MemoryFree, Percent: w.MemoryPercent},
		Swap:                 Usage{Total: w.SwapTotal, Used: w.SwapUsed, Free: w.SwapFree, Percent: w.SwapPercent},
		DiskSpace:            Usage{Total: w.DiskTotal, Used: w.DiskUsed, Free: w.DiskFree, Percent: w.DiskPercent},
		NetworkBytesPerSec:   w.NetworkBytesPerSec,
		DiskReadBytesPerSec:  w.DiskReadBytesPerSec,
		DiskWriteBytesPerSec: w.DiskWriteBytesPerSec,
	}
	return nil
}

// ClampPercent bounds v to [0, 100]. NaN becomes 0.
func ClampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(v float64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
