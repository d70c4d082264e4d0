package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voluzi/cloudvitals/pkg/agent"
	"github.com/voluzi/cloudvitals/pkg/environ"
)

var client *agent.Client
var logLevel string
var host string
var port int
var timeout time.Duration
var outputJSON bool

var rootCmd = &cobra.Command{
	Use:   "vitalsctl",
	Short: "CLI tool for querying a cloudvitals agent",
	Long:  `vitalsctl reads host metrics from a cloudvitals agent and starts or stops its stress jobs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLvl, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		log.SetLevel(logLvl)
		client = agent.NewClient(host, port)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel,
		"log-level",
		environ.GetString("LOG_LEVEL", "info"),
		"Log level. One of debug, info, warn, error, fatal, panic.",
	)
	rootCmd.PersistentFlags().StringVar(&host,
		"host",
		environ.GetString("VITALS_HOST", "127.0.0.1"),
		"Host the agent is listening on",
	)
	rootCmd.PersistentFlags().IntVar(&port,
		"port",
		environ.GetInt("VITALS_PORT", agent.DefaultPort),
		"Port the agent is listening on",
	)
	rootCmd.PersistentFlags().DurationVar(&timeout,
		"timeout",
		environ.GetDuration("VITALS_TIMEOUT", 10*time.Second),
		"Timeout for each request to the agent",
	)
	rootCmd.PersistentFlags().BoolVar(&outputJSON,
		"json",
		false,
		"Print responses as JSON",
	)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
