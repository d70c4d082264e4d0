package cmd

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voluzi/cloudvitals/pkg/agent"
	"github.com/voluzi/cloudvitals/pkg/environ"
	"github.com/voluzi/cloudvitals/pkg/pipe"
)

var pipePath string

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follows samples published to the agent fifo",
	Long:  `Tail reads the fifo the agent writes every sample to. It must run on the agent host.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := pipe.NewSubscriber(cmd.Context(), pipePath)
		if err != nil {
			return err
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			if err := sub.Stop(); err != nil {
				log.Errorf("error closing fifo: %v", err)
			}
		}()

		go sub.Start()
		for msg := range sub.Messages {
			if msg.Err != nil {
				log.Warnf("skipping malformed line: %v", msg.Err)
				continue
			}
			if outputJSON {
				if err := printJSON(msg.Sample); err != nil {
					return err
				}
				continue
			}
			printSample(os.Stdout, msg.Sample)
		}
		return nil
	},
}

func init() {
	tailCmd.Flags().StringVar(&pipePath, "pipe-path",
		environ.GetString("PIPE_PATH", agent.DefaultPipePath),
		"Fifo the agent publishes samples to",
	)
	rootCmd.AddCommand(tailCmd)
}
