package pipe

import (
	"bufio"
	"context"
	"io"
	"strings"
	"syscall"

	"emperror.dev/errors"
	"github.com/containerd/fifo"
	"github.com/goccy/go-json"

	"github.com/voluzi/cloudvitals/pkg/metrics"
)

// Message is one decoded line read from the pipe.
type Message struct {
	Sample *metrics.Sample
	Err    error
}

// Subscriber reads samples published to a named pipe.
type Subscriber struct {
	pipe     io.ReadCloser
	done     chan struct{}
	Messages chan *Message
}

// NewSubscriber opens path for reading, creating the fifo if needed. The pipe
// is opened read-write so the reader does not see EOF each time the publisher
// closes its end between ticks.
func NewSubscriber(ctx context.Context, path string) (*Subscriber, error) {
	f, err := fifo.OpenFifo(ctx, path, syscall.O_CREAT|syscall.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "opening fifo")
	}

	return &Subscriber{
		pipe:     f,
		done:     make(chan struct{}),
		Messages: make(chan *Message),
	}, nil
}

func (s *Subscriber) Stop() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.pipe.Close()
}

// Start reads lines until Stop is called. Messages is closed when it returns.
func (s *Subscriber) Start() {
	defer close(s.Messages)

	scanner := bufio.NewScanner(s.pipe)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		msg := &Message{}
		sample := metrics.Sample{}
		if err := json.Unmarshal([]byte(line), &sample); err != nil {
			msg.Err = errors.Wrap(err, "decoding sample")
		} else {
			msg.Sample = &sample
		}

		select {
		case s.Messages <- msg:
		case <-s.done:
			return
		}
	}
}
