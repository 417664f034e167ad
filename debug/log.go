// Package debug is a category logger for tracing the device while the TUI
// owns the terminal. It is off until a sink is attached.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const stamp = "15:04:05.000"

var (
	mu       sync.Mutex
	sink     io.Writer
	file     *os.File // set when sink is a log file we own
	counters = map[string]int{}
)

// Enable logs to ~/.config/go-stompbox/debug.log.
func Enable() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".config", "go-stompbox")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return EnableFile(filepath.Join(dir, "debug.log"))
}

// EnableFile truncates path and logs to it. It is a no-op if logging is
// already on.
func EnableFile(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if sink != nil {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	file, sink = f, f
	write("debug", "=== logging started ===")
	return nil
}

// EnableWriter logs to w, replacing any open log file. A nil w turns
// logging off.
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	detach()
	sink = w
}

// Disable stops logging and closes the log file.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	detach()
}

func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return sink != nil
}

// Log writes one line under category.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if sink == nil {
		return
	}
	write(category, fmt.Sprintf(format, args...))
}

// LogEvery logs one call in n for each category and format pair. Use it on
// per-buffer paths.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + "\x00" + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if n > 0 && count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

// write expects mu held.
func write(category, msg string) {
	fmt.Fprintf(sink, "[%s] %-10s %s\n", time.Now().Format(stamp), category, msg)
	if file != nil {
		file.Sync()
	}
}

func detach() {
	if file != nil {
		file.Close()
		file = nil
	}
	sink = nil
}
