//go:build unix

package system

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

const wantOpenFiles = 2048

// InitResourceLimits raises the soft limit of open files, capped by the hard
// limit. It returns the limit in effect.
func InitResourceLimits(log *slog.Logger) uint64 {
	var rLimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("Не удалось получить лимит файлов", "err", err)
		return 0
	}
	if rLimit.Cur >= wantOpenFiles {
		return rLimit.Cur
	}

	old := rLimit.Cur
	rLimit.Cur = wantOpenFiles
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("Не удалось установить лимит файлов", "err", err)
		return old
	}
	log.Debug("Системный лимит открытых файлов увеличен", "limit", rLimit.Cur)
	return rLimit.Cur
}
