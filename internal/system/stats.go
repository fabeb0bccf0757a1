package system

import (
	"log/slog"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is a snapshot of the resource usage of this process.
type ProcessStats struct {
	RSS        uint64
	CPUPercent float64
	HeapAlloc  uint64
	NumGC      uint32
	Goroutines int
}

// Snapshot reads the resident set and CPU share of the current process
// along with Go heap stats.
func Snapshot() (ProcessStats, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	st := ProcessStats{
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return st, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return st, err
	}
	st.RSS = mem.RSS
	if st.CPUPercent, err = p.CPUPercent(); err != nil {
		return st, err
	}
	return st, nil
}

// LogValue renders the snapshot as a slog group.
func (s ProcessStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("rss", s.RSS),
		slog.Float64("cpu_percent", s.CPUPercent),
		slog.Uint64("heap_alloc", s.HeapAlloc),
		slog.Uint64("num_gc", uint64(s.NumGC)),
		slog.Int("goroutines", s.Goroutines),
	)
}
