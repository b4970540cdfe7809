package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/majorcontext/metric-collector/internal/log"
	"github.com/majorcontext/metric-collector/internal/orchestrator"
)

var (
	pidsFlag        string
	processNameFlag string
	periodMS        int
	dataDirectory   string
)

func init() {
	rootCmd.Flags().StringVar(&pidsFlag, "pids", "", "comma-separated list of PIDs to attach to (mutually exclusive with --process-name)")
	rootCmd.Flags().StringVar(&processNameFlag, "process-name", "", "regex over /proc/*/comm to select processes to attach to")
	rootCmd.Flags().IntVar(&periodMS, "period", 1000, "sampler tick period, in milliseconds")
	rootCmd.Flags().StringVar(&dataDirectory, "data-directory", "./data", "directory the CSV tree is written under")
	rootCmd.RunE = runCollector
}

func runCollector(cmd *cobra.Command, args []string) error {
	cfg, err := parseConfig()
	if err != nil {
		return err
	}

	o, err := orchestrator.New(cfg, log.With("component", "orchestrator"))
	if err != nil {
		return fmt.Errorf("constructing orchestrator: %w", err)
	}

	log.Info("starting metric collector", "data_directory", cfg.DataDirectory, "period", cfg.Period)
	return o.Run(context.Background())
}

func parseConfig() (orchestrator.Config, error) {
	havePIDs := pidsFlag != ""
	haveProcessName := processNameFlag != ""
	if havePIDs == haveProcessName {
		return orchestrator.Config{}, fmt.Errorf("exactly one of --pids or --process-name is required")
	}

	cfg := orchestrator.Config{
		ProcessName:   processNameFlag,
		Period:        time.Duration(periodMS) * time.Millisecond,
		DataDirectory: dataDirectory,
	}

	if havePIDs {
		pids, err := parsePIDs(pidsFlag)
		if err != nil {
			return orchestrator.Config{}, err
		}
		cfg.PIDs = pids
	}

	return cfg, nil
}

func parsePIDs(csv string) ([]int, error) {
	parts := strings.Split(csv, ",")
	pids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		pid, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pid %q: %w", p, err)
		}
		pids = append(pids, pid)
	}
	if len(pids) == 0 {
		return nil, fmt.Errorf("--pids given but no valid PIDs parsed")
	}
	return pids, nil
}
