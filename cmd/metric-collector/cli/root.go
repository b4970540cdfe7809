// Package cli implements the metric-collector command-line interface
// using Cobra.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/majorcontext/metric-collector/internal/log"
)

var (
	verbose           bool
	debugLogDir       string
	debugLogRetention int
)

var rootCmd = &cobra.Command{
	Use:   "metric-collector",
	Short: "Per-thread Linux performance metric collector",
	Long: `metric-collector attaches to one or more running processes, discovers
all of their threads, and continuously records fine-grained synchronization,
I/O, and scheduler metrics into a tree of CSV files partitioned by time and
entity.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Init(log.Options{
			Verbose:       verbose,
			DebugDir:      debugLogDir,
			RetentionDays: debugLogRetention,
		})
	},
}

// Execute runs the root command.
func Execute() error {
	defer log.Close()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&debugLogDir, "debug-log-dir", "", "directory for per-run JSON debug log files (disabled if empty)")
	rootCmd.PersistentFlags().IntVar(&debugLogRetention, "debug-log-retention-days", 7, "days to keep per-run debug log files (0 disables cleanup)")
}
