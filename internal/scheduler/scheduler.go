// Package scheduler triggers the job at fixed times of day.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/autopost/botrunner/internal/runstore"
	"github.com/autopost/botrunner/internal/utils/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultTimes are the daily trigger times in UTC.
var DefaultTimes = []string{"07:00", "13:00", "19:00"}

// Trigger names passed to the job.
const (
	TriggerSchedule  = "schedule"
	TriggerCatchUp   = "catch-up"
	TriggerImmediate = "immediate"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// JobFunc runs one job invocation.
type JobFunc func(ctx context.Context, trigger string) error

// Options configure a Scheduler.
type Options struct {
	// Times are "HH:MM" entries; ignored when Cron is set.
	Times []string
	// Cron is a standard five-field cron expression.
	Cron     string
	Location *time.Location
	Clock    Clock
	// StateDir holds the last-run marker used for catch-up.
	StateDir string
	// Duration stops Run after this long; zero runs until ctx ends.
	Duration time.Duration
	// Immediate runs the job once on start.
	Immediate bool
}

// Scheduler owns the cron schedules of the job.
type Scheduler struct {
	opts      Options
	specs     []string
	schedules []cron.Schedule

	mu sync.Mutex
}

// TimeSpec converts "HH:MM" into a daily cron expression.
func TimeSpec(hhmm string) (string, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid schedule time %q: want HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid schedule time %q: bad hour", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid schedule time %q: bad minute", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// New parses the configured schedule.
func New(opts Options) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	var exprs []string
	if opts.Cron != "" {
		exprs = []string{opts.Cron}
	} else {
		times := opts.Times
		if len(times) == 0 {
			times = DefaultTimes
		}
		for _, t := range times {
			spec, err := TimeSpec(t)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, spec)
		}
	}

	s := &Scheduler{opts: opts}
	for _, expr := range exprs {
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
		}
		// an explicit CRON_TZ= prefix keeps its own zone
		if spec, ok := sched.(*cron.SpecSchedule); ok && !strings.Contains(expr, "TZ=") {
			spec.Location = opts.Location
		}
		s.specs = append(s.specs, expr)
		s.schedules = append(s.schedules, sched)
	}
	return s, nil
}

// Specs returns the cron expressions in use.
func (s *Scheduler) Specs() []string {
	return append([]string(nil), s.specs...)
}

// Next returns the earliest trigger after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	var next time.Time
	for _, sched := range s.schedules {
		n := sched.Next(t)
		if next.IsZero() || n.Before(next) {
			next = n
		}
	}
	return next
}

// Due reports whether a trigger time passed between the last recorded run
// and now. Without a previous run nothing is due.
func (s *Scheduler) Due(now time.Time, last *runstore.LastRun) bool {
	if last == nil || last.StartedAt.IsZero() {
		return false
	}
	next := s.Next(last.StartedAt)
	return !next.IsZero() && !next.After(now)
}

// Run starts the cron loop and blocks until ctx ends or the configured
// duration elapses. Jobs never overlap; job errors are logged and the loop
// keeps going.
func (s *Scheduler) Run(ctx context.Context, job JobFunc) error {
	log := logger.Logger()

	if s.opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Duration)
		defer cancel()
	}

	if s.opts.Immediate {
		s.invoke(ctx, job, TriggerImmediate)
	} else if s.opts.StateDir != "" {
		last, err := runstore.ReadLastRun(s.opts.StateDir)
		if err != nil {
			log.Warnf("ignoring last-run marker: %v", err)
		} else if s.Due(s.opts.Clock.Now(), last) {
			log.Infof("missed a scheduled run since %s, catching up", last.StartedAt.Format(time.RFC3339))
			s.invoke(ctx, job, TriggerCatchUp)
		}
	}

	c := cron.New(
		cron.WithLocation(s.opts.Location),
		cron.WithLogger(cronLogger{log}),
		cron.WithChain(cron.Recover(cronLogger{log})),
	)
	for _, sched := range s.schedules {
		c.Schedule(sched, cron.FuncJob(func() {
			s.invoke(ctx, job, TriggerSchedule)
		}))
	}

	c.Start()
	log.Infof("scheduler started: %s, next run at %s",
		strings.Join(s.specs, "; "), s.Next(s.opts.Clock.Now()).Format(time.RFC3339))

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()

	log.Infof("scheduler stopped")
	return nil
}

func (s *Scheduler) invoke(ctx context.Context, job JobFunc, trigger string) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := job(ctx, trigger); err != nil {
		logger.Logger().Errorf("%s run failed: %v", trigger, err)
	}
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
