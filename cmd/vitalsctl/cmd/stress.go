package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/c2h5oh/datasize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var stressDuration time.Duration

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Manages stress jobs on the agent host",
}

var stressStartCmd = &cobra.Command{
	Use:   "start <class>",
	Short: "Starts a stress job. A zero duration runs it until stopped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		resp, err := client.StartStress(ctx, args[0], stressDuration)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(resp)
		}
		log.WithFields(log.Fields{
			"class":    resp.Class,
			"duration": time.Duration(resp.Duration * float64(time.Second)),
		}).Info("stress job started")
		return nil
	},
}

var stressStopCmd = &cobra.Command{
	Use:   "stop <class>",
	Short: "Stops a running stress job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		if err := client.StopStress(ctx, args[0]); err != nil {
			return err
		}
		log.WithField("class", args[0]).Info("stress job stopped")
		return nil
	},
}

var stressListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists running and recently finished stress jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		status, err := client.ListStress(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(status)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CLASS\tPID\tSTATE\tSTARTED\tENDS\tCPU\tRSS")
		for _, job := range status.Running {
			ends, cpu, rss := "-", "-", "-"
			if job.ExpiresAt != nil {
				ends = job.ExpiresAt.Format(time.RFC3339)
			}
			if job.Stats != nil {
				cpu = fmt.Sprintf("%.2fs", job.Stats.CPUTimeSec)
				rss = datasize.ByteSize(job.Stats.MemoryRSS).HumanReadable()
			}
			_, _ = fmt.Fprintf(w, "%s\t%d\trunning\t%s\t%s\t%s\t%s\n",
				job.Class, job.Pid, job.StartedAt.Format(time.RFC3339), ends, cpu, rss)
		}
		for _, rec := range status.Recent {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t-\t-\n",
				rec.Class, rec.Pid, rec.Reason, rec.StartedAt.Format(time.RFC3339), rec.EndedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	stressStartCmd.Flags().DurationVarP(&stressDuration, "duration", "d", 0,
		"How long the job runs before it is stopped automatically",
	)

	stressCmd.AddCommand(stressStartCmd, stressStopCmd, stressListCmd)
	rootCmd.AddCommand(stressCmd)
}
