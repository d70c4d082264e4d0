package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/voluzi/cloudvitals/pkg/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Prints the latest host sample",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		sample, err := client.GetMetrics(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(sample)
		}
		printSample(os.Stdout, sample)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}

func printSample(w io.Writer, s *metrics.Sample) {
	_, _ = fmt.Fprintf(w, "tick %d at %s\n", s.Tick, s.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"))
	_, _ = fmt.Fprintf(w, "  cpu        %6.2f%%\n", s.CPUPercent)
	printUsage(w, "memory", s.Memory)
	printUsage(w, "swap", s.Swap)
	printUsage(w, "disk", s.DiskSpace)
	_, _ = fmt.Fprintf(w, "  network    %s/s\n", humanRate(s.NetworkBytesPerSec))
	_, _ = fmt.Fprintf(w, "  disk io    read %s/s, write %s/s\n",
		humanRate(s.DiskReadBytesPerSec), humanRate(s.DiskWriteBytesPerSec))
}

func printUsage(w io.Writer, name string, u metrics.Usage) {
	_, _ = fmt.Fprintf(w, "  %-10s %6.2f%% (%s used of %s, %s free)\n", name, u.Percent,
		datasize.ByteSize(u.Used).HumanReadable(),
		datasize.ByteSize(u.Total).HumanReadable(),
		datasize.ByteSize(u.Free).HumanReadable(),
	)
}

func humanRate(v float64) string {
	if v <= 0 {
		return "0 B"
	}
	return datasize.ByteSize(uint64(v)).HumanReadable()
}
