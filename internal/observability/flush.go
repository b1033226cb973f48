package observability

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// FlushLogs syncs buffered log entries before process exit. Sync errors from
// non-file sinks (stderr attached to a terminal or pipe) are ignored.
func FlushLogs(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil {
		if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) {
			return nil
		}
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}
