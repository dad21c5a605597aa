package cmdlog

import (
	"rookery/internal/logging"
	"rookery/internal/metrics"
)

// Run wraps a CLI command with run/error counters and a closing log line.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		logging.L().Errorw(cmd+" failed", "error", err)
	} else {
		logging.L().Infow(cmd + " ok")
	}
	return err
}
