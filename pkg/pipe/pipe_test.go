package pipe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/voluzi/cloudvitals/pkg/metrics"
)

func TestNewPublisher_CreatesFifo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitals.fifo")

	p, err := NewPublisher(path, true)
	require.NoError(t, err)
	assert.Equal(t, path, p.Path())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeNamedPipe)
}

func TestNewPublisher_ReusesExistingFifo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitals.fifo")
	require.NoError(t, unix.Mkfifo(path, 0600))

	_, err := NewPublisher(path, true)
	assert.NoError(t, err)

	_, err = NewPublisher(path, false)
	assert.NoError(t, err)
}

func TestNewPublisher_MissingWithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.fifo")

	_, err := NewPublisher(path, false)
	assert.Error(t, err)
}

func TestNewPublisher_RejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regular")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	_, err := NewPublisher(path, false)
	assert.True(t, errors.Is(err, ErrNotFifo))
}

func TestPublisher_NoReaderDoesNotBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitals.fifo")
	p, err := NewPublisher(path, true)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- p.Publish(metrics.Sample{Tick: 1})
	}()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrNoReader), "unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("publish blocked without a reader")
	}
}

func TestPublisher_DeliversToSubscriber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitals.fifo")
	p, err := NewPublisher(path, true)
	require.NoError(t, err)

	sub, err := NewSubscriber(context.Background(), path)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sub.Start()
	}()

	for tick := uint64(1); tick <= 3; tick++ {
		require.NoError(t, p.Publish(metrics.Sample{Tick: tick, CPUPercent: float64(tick * 10)}))
	}

	for tick := uint64(1); tick <= 3; tick++ {
		select {
		case msg := <-sub.Messages:
			require.NoError(t, msg.Err)
			require.NotNil(t, msg.Sample)
			assert.Equal(t, tick, msg.Sample.Tick)
			assert.Equal(t, float64(tick*10), msg.Sample.CPUPercent)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for sample %d", tick)
		}
	}

	require.NoError(t, sub.Stop())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestSubscriber_ReportsInvalidLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitals.fifo")

	sub, err := NewSubscriber(context.Background(), path)
	require.NoError(t, err)
	go sub.Start()
	defer sub.Stop()

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.WriteString("\n  \nnot json\n")
	require.NoError(t, err)

	select {
	case msg := <-sub.Messages:
		assert.Error(t, msg.Err)
		assert.Nil(t, msg.Sample)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}
