package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// EventHandler processes one chat event
type EventHandler func(ctx context.Context, ev domain.ChatEvent)

// DispatcherConfig contains dispatcher configuration
type DispatcherConfig struct {
	Workers   int           // max events processed concurrently across chats
	QueueSize int           // buffered events per chat lane
	LaneIdle  time.Duration // idle lanes exit after this long
}

// DefaultDispatcherConfig returns default dispatcher configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:   64,
		QueueSize: 128,
		LaneIdle:  time.Minute,
	}
}

// Dispatcher runs events of one chat in order on a dedicated lane while
// different chats proceed in parallel.
type Dispatcher struct {
	config  DispatcherConfig
	handler EventHandler
	log     *zap.Logger

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool

	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type lane struct {
	key     string
	events  chan domain.ChatEvent
	pending int // guarded by Dispatcher.mu
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(config DispatcherConfig, handler EventHandler, log *zap.Logger) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}
	if config.LaneIdle <= 0 {
		config.LaneIdle = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		config:  config,
		handler: handler,
		log:     log.Named("dispatcher"),
		lanes:   make(map[string]*lane),
		sem:     make(chan struct{}, config.Workers),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit queues ev on its chat lane. It blocks while the lane is full and
// returns false once the dispatcher is stopped.
func (d *Dispatcher) Submit(ev domain.ChatEvent) bool {
	if ev == nil {
		return false
	}
	key := ev.ChatID()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	l, ok := d.lanes[key]
	if !ok {
		l = &lane{key: key, events: make(chan domain.ChatEvent, d.config.QueueSize)}
		d.lanes[key] = l
		d.wg.Add(1)
		go d.runLane(l)
	}
	l.pending++
	d.mu.Unlock()

	select {
	case l.events <- ev:
		return true
	case <-d.ctx.Done():
		return false
	}
}

func (d *Dispatcher) runLane(l *lane) {
	defer d.wg.Done()

	idle := time.NewTimer(d.config.LaneIdle)
	defer idle.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case ev := <-l.events:
			d.handle(ev)
			d.mu.Lock()
			l.pending--
			d.mu.Unlock()
			idle.Reset(d.config.LaneIdle)
		case <-idle.C:
			d.mu.Lock()
			if l.pending == 0 {
				delete(d.lanes, l.key)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(d.config.LaneIdle)
		}
	}
}

func (d *Dispatcher) handle(ev domain.ChatEvent) {
	select {
	case d.sem <- struct{}{}:
	case <-d.ctx.Done():
		return
	}
	defer func() { <-d.sem }()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Event handler panicked", zap.Any("panic", r), zap.String("chat", ev.ChatID()))
		}
	}()
	d.handler(d.ctx, ev)
}

// Lanes returns the number of live chat lanes
func (d *Dispatcher) Lanes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

// Stop stops accepting events, cancels in-flight handlers and waits for lanes to exit.
// Queued events that have not started are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
