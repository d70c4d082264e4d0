package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	_ "go.uber.org/automaxprocs"

	"github.com/voluzi/cloudvitals/pkg/agent"
)

var (
	host          string
	port          int
	interval      time.Duration
	diskPath      string
	pipePath      string
	createFifo    bool
	stressCommand string
	stressHistory time.Duration
	logLevel      string
)

func main() {
	flag.Parse()

	if level, err := log.ParseLevel(logLevel); err == nil {
		log.SetLevel(level)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	vitalsAgent, err := agent.New(
		agent.WithHost(host),
		agent.WithPort(port),
		agent.WithInterval(interval),
		agent.WithDiskPath(diskPath),
		agent.WithPipePath(pipePath),
		agent.CreateFifo(createFifo),
		agent.WithStressCommand(stressCommand),
		agent.WithStressHistory(stressHistory),
	)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		sig := <-sigChan
		log.Infof("received signal: %v", sig)
		if err := vitalsAgent.Stop(); err != nil {
			log.Errorf("failed to stop agent: %v", err)
		}
	}()

	if err := vitalsAgent.Start(); err != nil {
		log.Fatal(err)
	}
}
