package agent

import (
	"context"
	"log"
	"sync"
	"time"
)

// Runner ticks each started bot on its own goroutine.
type Runner struct {
	ctx      context.Context
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a Runner whose loops end when ctx is cancelled.
func NewRunner(ctx context.Context, interval time.Duration, logger *log.Logger) *Runner {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		ctx:      ctx,
		interval: interval,
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start begins ticking b. Starting a running bot is a no-op.
func (r *Runner) Start(b *Bot) {
	key := fold(b.Name())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, running := r.cancels[key]; running {
		return
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.cancels[key] = cancel

	r.wg.Add(1)
	go r.loop(ctx, b)
}

func (r *Runner) loop(ctx context.Context, b *Bot) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !b.Active() {
				continue
			}
			r.tick(b)
		}
	}
}

func (r *Runner) tick(b *Bot) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("[%s] tick panicked: %v", b.Name(), rec)
		}
	}()
	b.Tick()
}

// Stop ends the loop for the named bot.
func (r *Runner) Stop(name string) {
	key := fold(name)

	r.mu.Lock()
	cancel, ok := r.cancels[key]
	delete(r.cancels, key)
	r.mu.Unlock()

	if ok {
		cancel()
	}
}

// Running reports how many bots are being ticked.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.cancels)
}

// Wait blocks until every loop has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
