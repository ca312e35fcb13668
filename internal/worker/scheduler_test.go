package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nflow-health/nflow/internal/archive"
	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/testutil"
)

type stubPinger struct {
	err   error
	calls int
}

func (p *stubPinger) PingContext(ctx context.Context) error {
	p.calls++
	return p.err
}

type stubArchiver struct {
	sinces []time.Time
	until  time.Time
	err    error
}

func (a *stubArchiver) Export(ctx context.Context, since time.Time) (*archive.Result, error) {
	a.sinces = append(a.sinces, since)
	if a.err != nil {
		return nil, a.err
	}
	return &archive.Result{Since: since, Until: a.until}, nil
}

func TestScheduler_StartStop(t *testing.T) {
	cfg := config.WorkerConfig{HealthSchedule: "@every 1h", ArchiveSpec: "0 3 * * *"}
	s := NewScheduler(cfg, &stubPinger{}, &stubArchiver{}, testutil.NewTestLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if got := len(s.scheduler.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2", got)
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	s.Stop()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	cfg := config.WorkerConfig{HealthSchedule: "every now and then", ArchiveSpec: "0 3 * * *"}
	s := NewScheduler(cfg, &stubPinger{}, nil, testutil.NewTestLogger())

	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() accepted an invalid schedule")
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after failed Start")
	}
}

func TestScheduler_WithoutArchive(t *testing.T) {
	cfg := config.WorkerConfig{HealthSchedule: "@every 1h", ArchiveSpec: "bogus"}
	s := NewScheduler(cfg, &stubPinger{}, nil, testutil.NewTestLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	if got := len(s.scheduler.Entries()); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}
}

func TestScheduler_CheckDatabase(t *testing.T) {
	p := &stubPinger{}
	s := NewScheduler(config.WorkerConfig{}, p, nil, testutil.NewTestLogger())

	s.checkDatabase(context.Background())
	p.err = fmt.Errorf("connection refused")
	s.checkDatabase(context.Background())

	if p.calls != 2 {
		t.Errorf("ping calls = %d, want 2", p.calls)
	}
}

func TestScheduler_ArchiveAdvancesWindow(t *testing.T) {
	until := time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC)
	a := &stubArchiver{until: until}
	s := NewScheduler(config.WorkerConfig{}, &stubPinger{}, a, testutil.NewTestLogger())
	initial := s.lastExport

	s.runArchive(context.Background())
	s.runArchive(context.Background())

	if len(a.sinces) != 2 {
		t.Fatalf("exports = %d, want 2", len(a.sinces))
	}
	if !a.sinces[0].Equal(initial) {
		t.Errorf("first since = %v, want %v", a.sinces[0], initial)
	}
	if !a.sinces[1].Equal(until) {
		t.Errorf("second since = %v, want %v", a.sinces[1], until)
	}

	// a failed run keeps the window
	a.err = fmt.Errorf("bucket missing")
	s.runArchive(context.Background())
	if !s.lastExport.Equal(until) {
		t.Errorf("lastExport = %v after failure, want %v", s.lastExport, until)
	}
}
