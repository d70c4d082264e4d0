package agent

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/cloudvitals/pkg/pipe"
	"github.com/voluzi/cloudvitals/pkg/sampler"
	"github.com/voluzi/cloudvitals/pkg/samplestore"
	"github.com/voluzi/cloudvitals/pkg/stress"
)

const shutdownTimeout = 5 * time.Second

// Agent wires the sampler, the sample store, the pipe publisher and the
// stress supervisor behind an HTTP server.
type Agent struct {
	server     *http.Server
	router     *mux.Router
	cfg        *Options
	store      *samplestore.Store
	sampler    *sampler.Sampler
	publisher  *pipe.Publisher
	supervisor *stress.Supervisor

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an agent. No goroutine is started until Start or Serve, which
// must be paired with Stop.
func New(opts ...Option) (*Agent, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.Interval <= 0 {
		return nil, errors.Errorf("sampling interval must be positive, got %v", options.Interval)
	}

	reader := options.HostReader
	if reader == nil {
		reader = sampler.NewHostReader()
	}

	spawner := options.Spawner
	if spawner == nil {
		spawner = stress.NewExecSpawner(options.StressCommand)
	}

	store := samplestore.New()
	samplerOpts := []sampler.Option{
		sampler.WithInterval(options.Interval),
		sampler.WithDiskPath(options.DiskPath),
	}

	var publisher *pipe.Publisher
	if options.PipePath != "" {
		var err error
		publisher, err = pipe.NewPublisher(options.PipePath, options.CreateFifo)
		if err != nil {
			return nil, errors.WrapIf(err, "setting up sample pipe")
		}
		samplerOpts = append(samplerOpts, sampler.WithPublisher(publisher))
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		router:     mux.NewRouter(),
		cfg:        options,
		store:      store,
		sampler:    sampler.New(reader, store, samplerOpts...),
		publisher:  publisher,
		supervisor: stress.NewSupervisor(spawner, stress.WithHistoryTTL(options.StressHistory)),
		ctx:        ctx,
		cancel:     cancel,
	}
	a.registerRoutes()
	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", options.Host, options.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Handler exposes the HTTP routes without starting the sampler or a listener.
func (a *Agent) Handler() http.Handler {
	return a.router
}

// Start listens on the configured address and blocks until Stop is called.
func (a *Agent) Start() error {
	l, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return err
	}
	return a.Serve(l)
}

// Serve runs the sampler and serves HTTP on l until Stop is called.
func (a *Agent) Serve(l net.Listener) error {
	go a.sampler.Run(a.ctx)
	a.supervisor.StartJanitor()

	fields := log.Fields{"address": l.Addr().String()}
	if a.publisher != nil {
		fields["pipe"] = a.publisher.Path()
	}
	log.WithFields(fields).Info("agent started")

	err := a.server.Serve(l)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop halts sampling, signals every running stress job and shuts the HTTP
// server down.
func (a *Agent) Stop() error {
	log.Info("stopping agent")

	a.cancel()

	log.Debug("terminating stress jobs")
	a.supervisor.Shutdown()

	log.Debug("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.server.Shutdown(ctx)
}
