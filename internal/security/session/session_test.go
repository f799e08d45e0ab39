package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// fakeClock drives cache time by hand.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestParseExpiryMode(t *testing.T) {
	for in, want := range map[string]ExpiryMode{
		"":        Sliding,
		"sliding": Sliding,
		"Fixed":   Fixed,
	} {
		got, err := ParseExpiryMode(in)
		if err != nil {
			t.Fatalf("ParseExpiryMode(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseExpiryMode(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseExpiryMode("eventually"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestMemoryAddAndRead(t *testing.T) {
	cache := NewMemory(10*time.Minute, Sliding)
	ctx := context.Background()

	token, err := cache.Add(ctx, "john")
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if got := cache.UserName(token); got != "john" {
		t.Fatalf("UserName = %q", got)
	}

	other, err := cache.Add(ctx, "jane")
	if err != nil {
		t.Fatal(err)
	}
	if other == token {
		t.Fatal("tokens must be unique")
	}
	if got := cache.UserName("bogus"); got != "" {
		t.Fatalf("unknown token should read empty, got %q", got)
	}
	if got := cache.UserName(""); got != "" {
		t.Fatalf("empty token should read empty, got %q", got)
	}
}

func TestMemorySlidingExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemory(10*time.Minute, Sliding)
	cache.now = clock.now

	token, err := cache.Add(context.Background(), "john")
	if err != nil {
		t.Fatal(err)
	}

	// A read at T0+9m succeeds and slides the expiry to T0+19m.
	clock.advance(9 * time.Minute)
	if cache.UserName(token) != "john" {
		t.Fatal("session should be live at T0+9m")
	}

	// T0+18m is within the renewed window.
	clock.advance(9 * time.Minute)
	if cache.UserName(token) != "john" {
		t.Fatal("session should be live at T0+18m after renewal")
	}

	// One minute past the renewed expiry the session is gone.
	clock.advance(10 * time.Minute)
	if cache.UserName(token) != "" {
		t.Fatal("session should have expired at T0+28m")
	}
	if cache.Len() != 0 {
		t.Fatal("expired session should be evicted on read")
	}
}

func TestMemoryFixedExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemory(10*time.Minute, Fixed)
	cache.now = clock.now

	token, err := cache.Add(context.Background(), "john")
	if err != nil {
		t.Fatal(err)
	}

	clock.advance(9 * time.Minute)
	if cache.UserName(token) != "john" {
		t.Fatal("session should be live at T0+9m")
	}

	// Reads never extend a fixed session.
	clock.advance(2 * time.Minute)
	if cache.UserName(token) != "" {
		t.Fatal("session should have expired at T0+11m regardless of reads")
	}
}

func TestMemoryExpiryIsExact(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemory(10*time.Minute, Fixed)
	cache.now = clock.now

	token, _ := cache.Add(context.Background(), "john")
	clock.advance(10 * time.Minute)
	if cache.UserName(token) != "" {
		t.Fatal("now >= expiry must evict")
	}
}

func TestMemoryRemoveIdempotent(t *testing.T) {
	cache := NewMemory(time.Minute, Sliding)
	ctx := context.Background()

	token, _ := cache.Add(ctx, "john")
	cache.Remove(ctx, token)
	if cache.UserName(token) != "" {
		t.Fatal("removed session still readable")
	}
	// Removing again must not panic or error.
	cache.Remove(ctx, token)
	cache.Remove(ctx, "never-existed")
}

func TestMemorySessionValues(t *testing.T) {
	cache := NewMemory(time.Minute, Sliding)
	ctx := context.Background()

	token, _ := cache.Add(ctx, "john")
	if err := cache.StoreValue(ctx, token, DisplayNameKey, "John Doe"); err != nil {
		t.Fatal(err)
	}
	if got := cache.Value(token, DisplayNameKey); got != "John Doe" {
		t.Fatalf("Value = %q", got)
	}
	if got := cache.Value(token, "missing"); got != "" {
		t.Fatalf("missing key should read empty, got %q", got)
	}
	if got := cache.Value("bogus", DisplayNameKey); got != "" {
		t.Fatalf("bogus token should read empty, got %q", got)
	}

	// Storing against an invalid token is a silent no-op.
	if err := cache.StoreValue(ctx, "bogus", "k", "v"); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryPurge(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemory(10*time.Minute, Fixed)
	cache.now = clock.now
	ctx := context.Background()

	stale, _ := cache.Add(ctx, "john")
	clock.advance(5 * time.Minute)
	fresh, _ := cache.Add(ctx, "jane")
	clock.advance(6 * time.Minute)

	if n := cache.Purge(); n != 1 {
		t.Fatalf("Purge = %d, want 1", n)
	}
	if cache.UserName(stale) != "" {
		t.Fatal("stale session survived purge")
	}
	if cache.UserName(fresh) != "jane" {
		t.Fatal("fresh session lost in purge")
	}
}

func TestFileCachePersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cache := NewFile(dir, 10*time.Minute, Sliding, nil)
	if err := cache.Init(); err != nil {
		t.Fatal(err)
	}
	token, err := cache.Add(ctx, "john")
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.StoreValue(ctx, token, DisplayNameKey, "John Doe"); err != nil {
		t.Fatal(err)
	}

	// Simulate restart: a new cache over the same directory.
	revived := NewFile(dir, 10*time.Minute, Sliding, nil)
	if err := revived.Init(); err != nil {
		t.Fatal(err)
	}
	if got := revived.UserName(token); got != "john" {
		t.Fatalf("recovered UserName = %q, want john", got)
	}
	if got := revived.Value(token, DisplayNameKey); got != "John Doe" {
		t.Fatalf("recovered Value = %q", got)
	}
}

func TestFileCacheDropsCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cache := NewFile(dir, 10*time.Minute, Sliding, nil)
	if err := cache.Init(); err != nil {
		t.Fatal(err)
	}
	token, err := cache.Add(ctx, "john")
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "corrupt.session"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "partial.session"), []byte(`{"token":""}`), 0o600); err != nil {
		t.Fatal(err)
	}

	revived := NewFile(dir, 10*time.Minute, Sliding, nil)
	if err := revived.Init(); err != nil {
		t.Fatalf("corrupt records must not fail startup: %v", err)
	}
	if revived.Len() != 1 {
		t.Fatalf("recovered %d sessions, want exactly 1", revived.Len())
	}
	if revived.UserName(token) != "john" {
		t.Fatal("valid session lost alongside corrupt ones")
	}
}

func TestFileCacheRemoveDeletesRecord(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cache := NewFile(dir, 10*time.Minute, Sliding, nil)
	if err := cache.Init(); err != nil {
		t.Fatal(err)
	}
	token, _ := cache.Add(ctx, "john")

	if _, err := os.Stat(filepath.Join(dir, token+fileSuffix)); err != nil {
		t.Fatalf("session record not written: %v", err)
	}
	cache.Remove(ctx, token)
	if _, err := os.Stat(filepath.Join(dir, token+fileSuffix)); !os.IsNotExist(err) {
		t.Fatal("session record not removed on logout")
	}
}

func TestFileCacheRecordShape(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cache := NewFile(dir, 10*time.Minute, Fixed, nil)
	if err := cache.Init(); err != nil {
		t.Fatal(err)
	}
	token, _ := cache.Add(ctx, "john")
	_ = cache.StoreValue(ctx, token, "k", "v")

	data, err := os.ReadFile(filepath.Join(dir, token+fileSuffix))
	if err != nil {
		t.Fatal(err)
	}
	var rec persistedSession
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Token != token || rec.UserName != "john" || rec.Values["k"] != "v" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.ExpiresAt.IsZero() {
		t.Fatal("record missing expiry")
	}
}

func TestCacheOperationsEmitSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cache := NewMemory(time.Minute, Sliding)
	ctx := context.Background()

	token, err := cache.Add(ctx, "john")
	if err != nil {
		t.Fatal(err)
	}
	cache.Remove(ctx, token)
	cache.Purge()

	names := make(map[string]bool)
	for _, s := range exporter.GetSpans() {
		names[s.Name] = true
	}
	for _, want := range []string{
		"security.session.add",
		"security.session.remove",
		"security.session.purge",
	} {
		if !names[want] {
			t.Errorf("missing span %q", want)
		}
	}
}

func TestSweeperSchedule(t *testing.T) {
	cache := NewMemory(time.Minute, Sliding)
	if _, err := NewSweeper("*/5 * * * *", cache, nil); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	if _, err := NewSweeper("not a schedule", cache, nil); err == nil {
		t.Fatal("invalid schedule accepted")
	}
}
