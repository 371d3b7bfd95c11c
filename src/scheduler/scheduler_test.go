package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apimgr/weather-probe/src/metrics"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{"@every 10m", false},
		{"@hourly", false},
		{"*/5 * * * *", false},
		{"0 2 * * *", false},
		{"0 0 2 * * *", true}, // seconds field is not accepted
		{"every ten minutes", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			_, err := ParseSchedule(tt.schedule)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSchedule(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
			}
		})
	}
}

func TestAddTask(t *testing.T) {
	s := New(context.Background(), nil)

	if err := s.AddTask("probe", "@every 1h", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	if err := s.AddTask("probe", "@every 1h", func(context.Context) error { return nil }); err == nil {
		t.Error("AddTask() with duplicate name should fail")
	}
	if err := s.AddTask("bad", "not a schedule", func(context.Context) error { return nil }); err == nil {
		t.Error("AddTask() with invalid schedule should fail")
	}

	status := s.Status()
	if len(status) != 1 || status[0].Name != "probe" || status[0].Schedule != "@every 1h" {
		t.Errorf("Status() = %+v", status)
	}
}

func TestRunNow(t *testing.T) {
	s := New(context.Background(), nil)
	wantErr := errors.New("upstream down")

	var calls int32
	err := s.AddTask("probe", "@every 1h", func(context.Context) error {
		if atomic.AddInt32(&calls, 1) == 2 {
			return wantErr
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.RunNow("probe"); err != nil {
		t.Errorf("first RunNow() error = %v", err)
	}
	if err := s.RunNow("probe"); !errors.Is(err, wantErr) {
		t.Errorf("second RunNow() error = %v, want %v", err, wantErr)
	}
	if err := s.RunNow("missing"); err == nil {
		t.Error("RunNow() on unknown task should fail")
	}

	status := s.Status()[0]
	if status.Runs != 2 {
		t.Errorf("Runs = %d, want 2", status.Runs)
	}
	if status.LastRun == nil {
		t.Error("LastRun should be set")
	}
	if status.LastError != "upstream down" {
		t.Errorf("LastError = %q", status.LastError)
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	s := New(context.Background(), nil)

	release := make(chan struct{})
	started := make(chan struct{})
	err := s.AddTask("slow", "@every 1h", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunNow("slow")
	}()

	<-started
	if err := s.RunNow("slow"); err != nil {
		t.Errorf("overlapping RunNow() error = %v", err)
	}
	close(release)
	wg.Wait()

	status := s.Status()[0]
	if status.Runs != 1 || status.Skipped != 1 {
		t.Errorf("Runs = %d, Skipped = %d, want 1 and 1", status.Runs, status.Skipped)
	}

	path := filepath.Join(t.TempDir(), "scheduler.prom")
	if err := metrics.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := `weather_probe_scheduled_runs_skipped_total{task="slow"} 1`; !strings.Contains(string(data), want) {
		t.Errorf("metrics missing %q", want)
	}
}

func TestReschedule(t *testing.T) {
	s := New(context.Background(), nil)
	if err := s.AddTask("probe", "@every 1h", func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}

	if err := s.Reschedule("probe", "@every 2h"); err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}
	if got := s.Status()[0].Schedule; got != "@every 2h" {
		t.Errorf("Schedule = %q, want @every 2h", got)
	}
	if err := s.Reschedule("probe", "bogus"); err == nil {
		t.Error("Reschedule() with invalid schedule should fail")
	}
	if got := s.Status()[0].Schedule; got != "@every 2h" {
		t.Errorf("failed reschedule changed schedule to %q", got)
	}
	if err := s.Reschedule("missing", "@hourly"); err == nil {
		t.Error("Reschedule() on unknown task should fail")
	}
}

func TestStopCancelsTaskContext(t *testing.T) {
	s := New(context.Background(), nil)
	done := make(chan error, 1)
	err := s.AddTask("probe", "@every 1h", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	go func() { done <- s.RunNow("probe") }()

	// Give RunNow a moment to block on the context
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("task error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task did not observe Stop")
	}
}
