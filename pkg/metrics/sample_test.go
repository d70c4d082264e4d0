package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample_MarshalFlatKeys(t *testing.T) {
	s := Sample{
		Tick:                 7,
		Timestamp:            time.Unix(1700000000, 500000000),
		CPUPercent:           12.5,
		Memory:               Usage{Total: 1000, Used: 400, Free: 600, Percent: 40},
		Swap:                 Usage{Total: 200, Used: 0, Free: 200, Percent: 0},
		DiskSpace:            Usage{Total: 5000, Used: 2500, Free: 2500, Percent: 50},
		NetworkBytesPerSec:   1000,
		DiskReadBytesPerSec:  64,
		DiskWriteBytesPerSec: 128,
	}

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &fields))

	assert.Equal(t, float64(7), fields["tick"])
	assert.Equal(t, 1700000000.5, fields["timestamp"])
	assert.Equal(t, 12.5, fields["cpu_percent"])
	assert.Equal(t, float64(400), fields["memory_used"])
	assert.Equal(t, float64(40), fields["memory_percent"])
	assert.Equal(t, float64(200), fields["swap_free"])
	assert.Equal(t, float64(50), fields["disk_percent"])
	assert.Equal(t, float64(1000), fields["network_bytes_per_sec"])
	assert.Equal(t, float64(1000), fields["network_average_bytes_per_sec"])
	assert.Equal(t, float64(64), fields["disk_read"])
	assert.Equal(t, float64(128), fields["disk_write_bytes_per_sec"])
}

func TestSample_ZeroValueIsWellFormed(t *testing.T) {
	b, err := json.Marshal(Sample{})
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.Equal(t, float64(0), fields["timestamp"])
	assert.Equal(t, float64(0), fields["cpu_percent"])
	assert.Contains(t, fields, "disk_total")

	var back Sample
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Timestamp.IsZero())
}

func TestSample_UnmarshalFromLine(t *testing.T) {
	line := `{"tick":3,"timestamp":1700000001,"cpu_percent":99,"memory_total":10,"memory_used":5,"memory_free":5,"memory_percent":50,"network_bytes_per_sec":42}`

	var s Sample
	require.NoError(t, json.Unmarshal([]byte(line), &s))
	assert.Equal(t, uint64(3), s.Tick)
	assert.Equal(t, int64(1700000001), s.Timestamp.Unix())
	assert.Equal(t, float64(99), s.CPUPercent)
	assert.Equal(t, Usage{Total: 10, Used: 5, Free: 5, Percent: 50}, s.Memory)
	assert.Equal(t, float64(42), s.NetworkBytesPerSec)
}

func TestClampPercent(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{in: -3, want: 0},
		{in: 0, want: 0},
		{in: 55.5, want: 55.5},
		{in: 100, want: 100},
		{in: 100.2, want: 100},
		{in: math.NaN(), want: 0},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, ClampPercent(test.in))
	}
}
