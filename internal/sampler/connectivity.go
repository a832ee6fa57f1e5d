package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinytelemetry/apiwatch/internal/model"
)

// ConnectivityWatcher polls network interface state and fires onOnline
// when the host goes from offline to online.
type ConnectivityWatcher struct {
	interval time.Duration
	check    func(ctx context.Context) (bool, error)
	onOnline func()
	logf     func(message string)

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	online   bool
}

// NewConnectivityWatcher creates a watcher. logf receives online/offline
// transition messages and may be nil.
func NewConnectivityWatcher(interval time.Duration, onOnline func(), logf func(string)) *ConnectivityWatcher {
	if interval <= 0 {
		interval = model.DefaultConnectivityInterval
	}
	return &ConnectivityWatcher{
		interval: interval,
		check:    Online,
		onOnline: onOnline,
		logf:     logf,
		done:     make(chan struct{}),
		online:   true,
	}
}

// Start begins polling in a goroutine.
func (w *ConnectivityWatcher) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *ConnectivityWatcher) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-w.done:
			return
		}
	}
}

func (w *ConnectivityWatcher) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	online, err := w.check(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("sampler: interface check failed")
		return
	}
	was := w.online
	w.online = online

	switch {
	case !was && online:
		if w.logf != nil {
			w.logf("Network connection restored")
		}
		if w.onOnline != nil {
			w.onOnline()
		}
	case was && !online:
		if w.logf != nil {
			w.logf("Network connection lost")
		}
	}
}

// Stop ends polling and waits for the goroutine to exit.
func (w *ConnectivityWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
	})
}
