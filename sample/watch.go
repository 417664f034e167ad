package sample

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"go-stompbox/debug"
)

// Watcher reloads a sample directory when its wav files change.
type Watcher struct {
	w          *fsnotify.Watcher
	dir        string
	sampleRate int
	onReload   func(*Bank)

	// Settle is how long the directory must stay quiet before reloading,
	// so a file copy in progress is not loaded half written.
	Settle time.Duration
}

// NewWatcher starts watching dir. onReload receives each successfully
// loaded bank; failed loads are logged and the previous bank stays.
func NewWatcher(dir string, sampleRate int, onReload func(*Bank)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{
		w:          w,
		dir:        dir,
		sampleRate: sampleRate,
		onReload:   onReload,
		Settle:     250 * time.Millisecond,
	}, nil
}

// Run delivers reloads until ctx is done or the watcher fails.
func (sw *Watcher) Run(ctx context.Context) error {
	defer sw.w.Close()

	var settle *time.Timer
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		var fire <-chan time.Time
		if settle != nil {
			fire = settle.C
		}

		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-sw.w.Events:
			if !ok {
				return nil
			}
			if !isWAV(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(sw.Settle)
			} else {
				settle.Reset(sw.Settle)
			}

		case <-fire:
			settle = nil
			bank, err := LoadDir(sw.dir, sw.sampleRate)
			if err != nil {
				debug.Log("sample", "reload %s failed: %v", sw.dir, err)
				continue
			}
			debug.Log("sample", "reloaded %s: %d clips", sw.dir, bank.Len())
			sw.onReload(bank)

		case err, ok := <-sw.w.Errors:
			if !ok {
				return nil
			}
			debug.Log("sample", "watch error: %v", err)
		}
	}
}
