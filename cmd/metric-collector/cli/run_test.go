package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func resetFlags() {
	pidsFlag = ""
	processNameFlag = ""
	periodMS = 1000
	dataDirectory = "./data"
}

func TestParseConfigRequiresExactlyOneSelector(t *testing.T) {
	defer resetFlags()

	resetFlags()
	_, err := parseConfig()
	require.Error(t, err)

	resetFlags()
	pidsFlag = "1,2"
	processNameFlag = "nginx"
	_, err = parseConfig()
	require.Error(t, err)
}

func TestParseConfigPIDs(t *testing.T) {
	defer resetFlags()
	resetFlags()
	pidsFlag = "10, 20 ,30"

	cfg, err := parseConfig()
	require.NoError(t, err)
	require.Equal(t, []int{10, 20, 30}, cfg.PIDs)
}

func TestParseConfigProcessName(t *testing.T) {
	defer resetFlags()
	resetFlags()
	processNameFlag = "^nginx$"

	cfg, err := parseConfig()
	require.NoError(t, err)
	require.Equal(t, "^nginx$", cfg.ProcessName)
	require.Empty(t, cfg.PIDs)
}

func TestParsePIDsRejectsGarbage(t *testing.T) {
	_, err := parsePIDs("abc")
	require.Error(t, err)
}
