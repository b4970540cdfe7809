package main

import (
	"os"

	"github.com/majorcontext/metric-collector/cmd/metric-collector/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
