// Package reminder announces tasks shortly before they start.
package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/pkg/daytime"
	taskUC "github.com/fastygo/dayflow/usecase/task"
)

// Source exposes the current projection of one owner.
type Source interface {
	State() taskUC.State
}

// Reminder is a single due notification.
type Reminder struct {
	OwnerID  string               `json:"owner_id"`
	Task     domain.ProjectedTask `json:"task"`
	StartsIn time.Duration        `json:"starts_in"`
}

// NotifyFunc delivers a reminder.
type NotifyFunc func(ctx context.Context, r Reminder)

type track struct {
	source   Source
	notify   NotifyFunc
	notified map[string]struct{}
}

// Dispatcher checks tracked sources once a minute and fires a reminder when
// an incomplete task starts exactly Lead minutes from now. Each task id is
// announced at most once per tracked source.
type Dispatcher struct {
	lead   time.Duration
	logger *zap.Logger
	now    func() time.Time
	cron   *cron.Cron

	observers []NotifyFunc

	mu     sync.Mutex
	tracks map[int]*track
	nextID int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver adds fn to every delivered reminder, after the tracked
// source's own notifier.
func WithObserver(fn NotifyFunc) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.observers = append(d.observers, fn)
		}
	}
}

func New(lead time.Duration, logger *zap.Logger, opts ...Option) *Dispatcher {
	if lead <= 0 {
		lead = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		lead:   lead,
		logger: logger,
		now:    time.Now,
		cron:   cron.New(),
		tracks: make(map[int]*track),
	}
	for _, opt := range opts {
		opt(d)
	}
	_, _ = d.cron.AddFunc("@every 1m", func() {
		if sent := d.Check(d.now()); sent > 0 {
			d.logger.Debug("reminders sent", zap.Int("count", sent))
		}
	})
	return d
}

// Track adds source to the checked set until the returned function is called.
// A nil notify leaves delivery to the observers.
func (d *Dispatcher) Track(source Source, notify NotifyFunc) (untrack func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.tracks[id] = &track{source: source, notify: notify, notified: make(map[string]struct{})}
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.tracks, id)
		d.mu.Unlock()
	}
}

// Tracked returns the number of tracked sources.
func (d *Dispatcher) Tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tracks)
}

// Start launches the cron scheduler.
func (d *Dispatcher) Start() {
	d.cron.Start()
	d.logger.Info("reminder dispatcher started", zap.Duration("lead", d.lead))
}

// Stop waits for a running check to finish or ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) {
	stopCtx := d.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	d.logger.Info("reminder dispatcher stopped")
}

// Check evaluates every tracked source at now and returns the number of
// reminders delivered.
func (d *Dispatcher) Check(now time.Time) int {
	type due struct {
		notify NotifyFunc
		r      Reminder
	}

	leadMinutes := int(d.lead / time.Minute)
	clock := daytime.Clock(now)

	var pending []due
	d.mu.Lock()
	for _, tr := range d.tracks {
		state := tr.source.State()
		if state.Phase != taskUC.PhaseReady {
			continue
		}
		for _, t := range state.Tasks {
			if t.IsCompleted {
				continue
			}
			if _, done := tr.notified[t.ID]; done {
				continue
			}
			start, err := daytime.Parse(t.StartTime)
			if err != nil {
				continue
			}
			if int(start.Sub(clock)/time.Minute) != leadMinutes {
				continue
			}
			tr.notified[t.ID] = struct{}{}
			pending = append(pending, due{
				notify: tr.notify,
				r:      Reminder{OwnerID: state.OwnerID, Task: t, StartsIn: d.lead},
			})
		}
	}
	d.mu.Unlock()

	ctx := context.Background()
	for _, p := range pending {
		if p.notify != nil {
			p.notify(ctx, p.r)
		}
		for _, observe := range d.observers {
			observe(ctx, p.r)
		}
	}
	return len(pending)
}

// LogNotifier writes reminders to the logger.
func LogNotifier(logger *zap.Logger) NotifyFunc {
	return func(ctx context.Context, r Reminder) {
		logger.Info("task starting soon",
			zap.String("owner_id", r.OwnerID),
			zap.String("task_id", r.Task.ID),
			zap.String("description", r.Task.Description),
			zap.Duration("starts_in", r.StartsIn))
	}
}
