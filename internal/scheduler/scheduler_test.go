package scheduler

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/autopost/botrunner/internal/runstore"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestTimeSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "08:00", want: "0 8 * * *"},
		{in: "13:05", want: "5 13 * * *"},
		{in: " 7:30 ", want: "30 7 * * *"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "1:2:3", wantErr: true},
	}
	for _, tt := range tests {
		got, err := TimeSpec(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("TimeSpec(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("TimeSpec(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestNewDefaultsAndNext(t *testing.T) {
	s, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if want := []string{"0 7 * * *", "0 13 * * *", "0 19 * * *"}; !reflect.DeepEqual(s.Specs(), want) {
		t.Fatalf("Specs() = %v, want %v", s.Specs(), want)
	}

	tests := []struct {
		from time.Time
		want time.Time
	}{
		{time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC), time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)},
		{time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC), time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)},
		{time.Date(2024, 5, 1, 18, 59, 0, 0, time.UTC), time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)},
		{time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC), time.Date(2024, 5, 2, 7, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := s.Next(tt.from); !got.Equal(tt.want) {
			t.Errorf("Next(%s) = %s, want %s", tt.from, got, tt.want)
		}
	}
}

func TestNewCronAndErrors(t *testing.T) {
	s, err := New(Options{Cron: "0 */6 * * *"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	from := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)
	if got := s.Next(from); !got.Equal(time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected next %s", got)
	}

	if _, err := New(Options{Cron: "not a cron"}); err == nil {
		t.Error("expected error for bad cron expression")
	}
	if _, err := New(Options{Times: []string{"08:00", "25:00"}}); err == nil {
		t.Error("expected error for bad time")
	}
}

func TestNewLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	s, err := New(Options{Times: []string{"08:00"}, Location: loc})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := s.Next(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if want := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Next = %s, want %s", got.UTC(), want)
	}
}

func TestDue(t *testing.T) {
	s, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last *runstore.LastRun
		want bool
	}{
		{name: "never ran", last: nil, want: false},
		{name: "ran at the last slot", last: &runstore.LastRun{StartedAt: time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)}, want: false},
		{name: "missed 13:00", last: &runstore.LastRun{StartedAt: time.Date(2024, 5, 1, 7, 0, 5, 0, time.UTC)}, want: true},
		{name: "ran yesterday", last: &runstore.LastRun{StartedAt: time.Date(2024, 4, 30, 19, 0, 0, 0, time.UTC)}, want: true},
	}
	for _, tt := range tests {
		if got := s.Due(now, tt.last); got != tt.want {
			t.Errorf("%s: Due = %v, want %v", tt.name, got, tt.want)
		}
	}
}

type recorder struct {
	mu       sync.Mutex
	triggers []string
}

func (r *recorder) job(_ context.Context, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
	return errors.New("job errors do not stop the loop")
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.triggers...)
}

func TestRunImmediate(t *testing.T) {
	s, err := New(Options{Immediate: true, Duration: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	r := &recorder{}
	if err := s.Run(context.Background(), r.job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := r.got(); len(got) != 1 || got[0] != TriggerImmediate {
		t.Errorf("triggers = %v", got)
	}
}

func TestRunCatchUp(t *testing.T) {
	stateDir := t.TempDir()
	now := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	if err := runstore.WriteLastRun(stateDir, runstore.LastRun{
		RunID:     "prev",
		StartedAt: now.Add(-24 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	s, err := New(Options{StateDir: stateDir, Clock: fixedClock{now}, Duration: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	r := &recorder{}
	if err := s.Run(context.Background(), r.job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := r.got(); len(got) != 1 || got[0] != TriggerCatchUp {
		t.Errorf("triggers = %v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, (&recorder{}).job) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
