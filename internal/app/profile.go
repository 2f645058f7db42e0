package app

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// profiler appends per-phase tick timings to a CSV file. A nil profiler is
// valid and records nothing.
type profiler struct {
	mu    sync.Mutex
	file  *os.File
	start time.Time
	last  time.Time
}

func newProfiler(path string, log *slog.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Warn("profiler disabled", "error", err)
		return nil
	}
	p := &profiler{file: f}
	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		fmt.Fprintln(f, "timestamp,section,delta_ms")
	}
	log.Info("profiling render ticks", "path", path)
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	p.start = now
	p.last = now
}

// markSection records the time since the previous mark.
func (p *profiler) markSection(name string) {
	if p == nil {
		return
	}
	now := time.Now()
	p.write(now, name, now.Sub(p.last))
	p.last = now
}

func (p *profiler) endFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	p.write(now, "frame_total", now.Sub(p.start))
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

func (p *profiler) write(at time.Time, section string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return
	}
	fmt.Fprintf(p.file, "%s,%s,%.3f\n", at.Format(time.RFC3339Nano), section, float64(d)/float64(time.Millisecond))
}
