//go:build !unix

package system

import "log/slog"

// InitResourceLimits is a no-op outside unix systems.
func InitResourceLimits(log *slog.Logger) uint64 {
	return 0
}
