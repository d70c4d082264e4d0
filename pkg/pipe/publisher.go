package pipe

import (
	"context"
	"os"
	"syscall"

	"emperror.dev/errors"
	"github.com/containerd/fifo"
	"github.com/goccy/go-json"
	"golang.org/x/sys/unix"

	"github.com/voluzi/cloudvitals/pkg/metrics"
)

var (
	// ErrNoReader is returned when nobody has the pipe open for reading.
	ErrNoReader = errors.New("no reader attached to pipe")

	// ErrPipeFull is returned when the reader is not draining the pipe.
	ErrPipeFull = errors.New("pipe buffer is full")

	ErrNotFifo = errors.New("path exists and is not a fifo")
)

// Publisher writes samples to a named pipe, one JSON object per line. Every
// Publish is a single non-blocking attempt: samples are dropped when no
// reader is attached.
type Publisher struct {
	path string
}

func NewPublisher(path string, createFifo bool) (*Publisher, error) {
	if createFifo {
		f, err := fifo.OpenFifo(context.Background(), path, syscall.O_CREAT|syscall.O_RDONLY|syscall.O_NONBLOCK, 0644)
		if err != nil {
			return nil, errors.Wrap(err, "creating fifo")
		}
		if err := f.Close(); err != nil {
			return nil, errors.Wrap(err, "closing fifo")
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "checking fifo")
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		return nil, errors.WithDetails(ErrNotFifo, "path", path)
	}

	return &Publisher{path: path}, nil
}

func (p *Publisher) Path() string {
	return p.path
}

func (p *Publisher) Publish(sample metrics.Sample) error {
	line, err := json.Marshal(sample)
	if err != nil {
		return errors.Wrap(err, "encoding sample")
	}
	line = append(line, '\n')

	// Opening a fifo write-only with O_NONBLOCK fails with ENXIO right away
	// when there is no reader, instead of waiting for one.
	fd, err := unix.Open(p.path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return ErrNoReader
		}
		return errors.Wrap(err, "opening pipe")
	}
	defer unix.Close(fd)

	n, err := unix.Write(fd, line)
	switch {
	case errors.Is(err, unix.EAGAIN):
		return ErrPipeFull
	case errors.Is(err, unix.EPIPE):
		return ErrNoReader
	case err != nil:
		return errors.Wrap(err, "writing to pipe")
	case n < len(line):
		return errors.Errorf("short write to pipe: %d of %d bytes", n, len(line))
	}
	return nil
}
