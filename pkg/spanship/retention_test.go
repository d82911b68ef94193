package spanship

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/bft-labs/spanship/internal/adapters/file"
	"github.com/bft-labs/spanship/pkg/log"
)

func newRetentionFixture(t *testing.T, cfg RetentionConfig) (*retentionRunner, string, *clockz.FakeClock) {
	t.Helper()
	dir := t.TempDir()
	now := time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)
	clock := clockz.NewFakeClockAt(now)
	factory := file.NewFactory(file.Config{Dir: dir}, clock, nil)

	for h := 9; h <= 12; h++ {
		path := factory.PathAt(time.Date(2026, 10, 19, h, 0, 0, 0, time.UTC))
		if err := os.WriteFile(path, make([]byte, 100), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), make([]byte, 50), 0o600); err != nil {
		t.Fatal(err)
	}

	return newRetentionRunner(cfg, factory, clock, log.NewNoopLogger()), dir, clock
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRetention_RemovesOldestUntilLowWatermark(t *testing.T) {
	r, dir, _ := newRetentionFixture(t, RetentionConfig{HighWatermark: 300, LowWatermark: 250})

	if freed := r.cleanupOnce(context.Background()); freed != 200 {
		t.Fatalf("freed = %d, want 200", freed)
	}

	want := []string{"notes.txt", "spanship-2026-10-19-11.log", "spanship-2026-10-19-12.log"}
	got := listDir(t, dir)
	if len(got) != len(want) {
		t.Fatalf("remaining = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("remaining[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRetention_KeepsCurrentHour(t *testing.T) {
	r, dir, _ := newRetentionFixture(t, RetentionConfig{HighWatermark: 1, LowWatermark: 1})

	if freed := r.cleanupOnce(context.Background()); freed != 300 {
		t.Fatalf("freed = %d, want 300", freed)
	}

	got := listDir(t, dir)
	if len(got) != 2 || got[1] != "spanship-2026-10-19-12.log" {
		t.Fatalf("remaining = %v, want notes.txt and the current hour", got)
	}
}

func TestRetention_BelowHighWatermarkIsNoop(t *testing.T) {
	r, dir, _ := newRetentionFixture(t, RetentionConfig{HighWatermark: 1000, LowWatermark: 500})

	if freed := r.cleanupOnce(context.Background()); freed != 0 {
		t.Fatalf("freed = %d, want 0", freed)
	}
	if got := listDir(t, dir); len(got) != 5 {
		t.Fatalf("remaining = %v, want all 5 files", got)
	}
}

func TestRetention_MissingDir(t *testing.T) {
	clock := clockz.NewFakeClock()
	factory := file.NewFactory(file.Config{Dir: filepath.Join(t.TempDir(), "absent")}, clock, nil)
	r := newRetentionRunner(RetentionConfig{HighWatermark: 1, LowWatermark: 1}, factory, clock, log.NewNoopLogger())

	if freed := r.cleanupOnce(context.Background()); freed != 0 {
		t.Fatalf("freed = %d, want 0", freed)
	}
}

func TestWithRetentionConfig_Defaults(t *testing.T) {
	var o options
	WithRetentionConfig(RetentionConfig{Enabled: true, HighWatermark: 100, LowWatermark: 500})(&o)
	if o.retention == nil {
		t.Fatal("retention not set")
	}
	if o.retention.CheckInterval != time.Hour {
		t.Errorf("CheckInterval = %v, want 1h", o.retention.CheckInterval)
	}
	if o.retention.LowWatermark != 100 {
		t.Errorf("LowWatermark = %d, want clamped to 100", o.retention.LowWatermark)
	}

	o = options{}
	WithRetentionConfig(RetentionConfig{})(&o)
	if o.retention != nil {
		t.Error("disabled retention should not be set")
	}
}

func TestRetention_RunsOnSchedule(t *testing.T) {
	r, dir, fake := newRetentionFixture(t, RetentionConfig{CheckInterval: time.Minute, HighWatermark: 1000, LowWatermark: 500})

	ctx, cancel := context.WithCancel(context.Background())
	r.start(ctx)
	defer func() {
		cancel()
		r.stop()
	}()

	// Grow the directory past the watermark, then let the next check run.
	big := r.factory.PathAt(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	if err := os.WriteFile(big, make([]byte, 1000), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		fake.BlockUntilReady()
		fake.Advance(time.Minute)
		if _, err := os.Stat(big); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("oldest file not removed; dir = %v", listDir(t, dir))
		}
		time.Sleep(10 * time.Millisecond)
	}
}
