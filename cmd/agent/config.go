package main

import (
	"flag"

	"github.com/voluzi/cloudvitals/pkg/agent"
	"github.com/voluzi/cloudvitals/pkg/environ"
)

func init() {
	flag.StringVar(&host, "host",
		environ.GetString("HOST", agent.DefaultHost),
		"the host at which this server will be listening to",
	)

	flag.IntVar(&port, "port",
		environ.GetInt("PORT", agent.DefaultPort),
		"the port at which this server will be listening to",
	)

	flag.DurationVar(&interval, "interval",
		environ.GetDuration("SAMPLE_INTERVAL", agent.DefaultInterval),
		"how often host metrics are sampled",
	)

	flag.StringVar(&diskPath, "disk-path",
		environ.GetString("DISK_PATH", agent.DefaultDiskPath),
		"mount point whose filesystem usage is reported",
	)

	flag.StringVar(&pipePath, "pipe-path",
		environ.GetString("PIPE_PATH", agent.DefaultPipePath),
		"fifo every sample is written to. Empty disables publishing",
	)

	flag.BoolVar(&createFifo, "create-fifo",
		environ.GetBool("CREATE_FIFO", true),
		"create the fifo when it does not exist",
	)

	flag.StringVar(&stressCommand, "stress-command",
		environ.GetString("STRESS_COMMAND", agent.DefaultStressCommand),
		"load generator executable, invoked as <command> <class> <seconds>",
	)

	flag.DurationVar(&stressHistory, "stress-history",
		environ.GetDuration("STRESS_HISTORY", agent.DefaultStressHistory),
		"how long finished stress jobs are remembered",
	)

	flag.StringVar(&logLevel, "log-level",
		environ.GetString("LOG_LEVEL", "info"),
		"log level",
	)
}
