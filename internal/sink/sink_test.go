package sink

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/smazurov/depthnode/internal/calib"
	"github.com/smazurov/depthnode/internal/events"
)

func makeRecord(ms float64, table []byte) *calib.Record {
	px := float32(0.002)
	return &calib.Record{
		PixelSize:       &px,
		DistortionTable: table,
		TimestampMillis: ms,
	}
}

func readLogLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading calibration log: %v", err)
	}
	trimmed := strings.TrimRight(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

// hookFS wraps the real filesystem with failure and latency hooks.
type hookFS struct {
	OSFS
	failLine  atomic.Bool
	failTable func(base string) error
	gate      chan struct{}
}

func (f *hookFS) Create(name string) (File, error) {
	file, err := f.OSFS.Create(name)
	if err != nil {
		return nil, err
	}
	return &hookFile{File: file, fs: f}, nil
}

func (f *hookFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	if f.gate != nil {
		<-f.gate
	}
	if f.failTable != nil {
		if err := f.failTable(filepath.Base(name)); err != nil {
			return err
		}
	}
	return f.OSFS.WriteFile(name, data, perm)
}

type hookFile struct {
	File
	fs *hookFS
}

func (h *hookFile) Write(p []byte) (int, error) {
	if h.fs.failLine.Load() {
		return 0, errors.New("no space left on device")
	}
	return h.File.Write(p)
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturingPublisher) byType(match func(events.Event) bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if match(ev) {
			n++
		}
	}
	return n
}

func TestSinkPersistsInSubmissionOrder(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.Submit(makeRecord(100, []byte{1}))
	s.Submit(makeRecord(200, []byte{2}))
	s.Submit(makeRecord(300, nil))

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readLogLines(t, s.LogPath())
	if len(lines) != 3 {
		t.Fatalf("log has %d lines, want 3: %v", len(lines), lines)
	}
	for i, prefix := range []string{"100.0, ", "200.0, ", "300.0, "} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}

	// Distortion tables land beside the log, one file per record that
	// carried one.
	got, err := os.ReadFile(filepath.Join(s.DistortionDir(), "100.0.txt"))
	if err != nil {
		t.Fatalf("distortion file: %v", err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("distortion bytes = %v, want [1]", got)
	}
	if _, err := os.Stat(filepath.Join(s.DistortionDir(), "300.0.txt")); !os.IsNotExist(err) {
		t.Error("record without a table must not produce a distortion file")
	}
}

func TestSinkTruncatesOnOpen(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "calib.log"), []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	staleDir := filepath.Join(dir, "distortion")
	if err := os.MkdirAll(staleDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(staleDir, "9.9.txt"), []byte{9}, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if lines := readLogLines(t, s.LogPath()); lines != nil {
		t.Errorf("log not truncated: %v", lines)
	}
	if _, err := os.Stat(filepath.Join(staleDir, "9.9.txt")); !os.IsNotExist(err) {
		t.Error("stale distortion file survived construction")
	}
}

func TestSinkWriteFailureDropsOnlyThatRecord(t *testing.T) {
	dir := t.TempDir()
	fs := &hookFS{}
	fs.failTable = func(base string) error {
		if base == "200.0.txt" {
			return errors.New("no space left on device")
		}
		return nil
	}
	pub := &capturingPublisher{}

	s, err := New(Config{Dir: dir, FS: fs, Publisher: pub})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.Submit(makeRecord(100, []byte{1}))
	s.Submit(makeRecord(200, []byte{2}))
	s.Submit(makeRecord(300, []byte{3}))

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The failed record vanishes entirely: no log line, no distortion
	// file, no persisted event. Its neighbors are untouched.
	lines := readLogLines(t, s.LogPath())
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want 2: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "100.0, ") || !strings.HasPrefix(lines[1], "300.0, ") {
		t.Errorf("log lines = %v, want only the records that persisted", lines)
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "200.0, ") {
			t.Errorf("dropped record left a log line: %q", line)
		}
	}
	if _, err := os.Stat(filepath.Join(s.DistortionDir(), "100.0.txt")); err != nil {
		t.Error("record before the failure missing")
	}
	if _, err := os.Stat(filepath.Join(s.DistortionDir(), "200.0.txt")); !os.IsNotExist(err) {
		t.Error("failed record left a distortion file")
	}
	if _, err := os.Stat(filepath.Join(s.DistortionDir(), "300.0.txt")); err != nil {
		t.Error("record after the failure missing")
	}

	persisted := pub.byType(func(ev events.Event) bool {
		_, ok := ev.(events.CalibrationPersistedEvent)
		return ok
	})
	if persisted != 2 {
		t.Errorf("persisted events = %d, want 2", persisted)
	}
	failures := pub.byType(func(ev events.Event) bool {
		e, ok := ev.(events.SinkErrorEvent)
		return ok && e.Stage == "distortion"
	})
	if failures != 1 {
		t.Errorf("sink error events = %d, want 1", failures)
	}
}

func TestSinkLogLineFailureLeavesNoArtifacts(t *testing.T) {
	dir := t.TempDir()
	fs := &hookFS{}
	fs.failLine.Store(true)
	pub := &capturingPublisher{}

	s, err := New(Config{Dir: dir, FS: fs, Publisher: pub})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.Submit(makeRecord(100, []byte{1}))
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if lines := readLogLines(t, s.LogPath()); lines != nil {
		t.Errorf("log gained lines despite the write failure: %v", lines)
	}
	if _, err := os.Stat(filepath.Join(s.DistortionDir(), "100.0.txt")); !os.IsNotExist(err) {
		t.Error("distortion file survived although its log line failed")
	}
	failures := pub.byType(func(ev events.Event) bool {
		e, ok := ev.(events.SinkErrorEvent)
		return ok && e.Stage == "log"
	})
	if failures != 1 {
		t.Errorf("log failure events = %d, want 1", failures)
	}
}

func TestSinkQueueOverflowDrops(t *testing.T) {
	dir := t.TempDir()
	fs := &hookFS{gate: make(chan struct{})}
	pub := &capturingPublisher{}

	s, err := New(Config{Dir: dir, QueueSize: 1, FS: fs, Publisher: pub})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// First record occupies the worker inside the gated WriteFile,
	// second fills the queue, third must be dropped without blocking.
	s.Submit(makeRecord(100, []byte{1}))
	for {
		s.mu.RLock()
		depth := len(s.queue)
		s.mu.RUnlock()
		if depth == 0 {
			break
		}
	}
	s.Submit(makeRecord(200, []byte{2}))
	s.Submit(makeRecord(300, []byte{3}))

	close(fs.gate)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readLogLines(t, s.LogPath())
	if len(lines) != 2 {
		t.Fatalf("log has %d lines, want 2: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "100.0, ") || !strings.HasPrefix(lines[1], "200.0, ") {
		t.Errorf("unexpected order: %v", lines)
	}
	drops := pub.byType(func(ev events.Event) bool {
		e, ok := ev.(events.SinkErrorEvent)
		return ok && e.Stage == "queue"
	})
	if drops != 1 {
		t.Errorf("queue drop events = %d, want 1", drops)
	}
}

func TestSinkSubmitAfterCloseIsIgnored(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Must not panic or write.
	s.Submit(makeRecord(100, []byte{1}))
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if lines := readLogLines(t, s.LogPath()); lines != nil {
		t.Errorf("log gained lines after close: %v", lines)
	}
}

type capturingRecorder struct {
	mu      sync.Mutex
	records []string
	fail    bool
}

func (r *capturingRecorder) RecordCalibration(rec *calib.Record, distortionFile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("index unavailable")
	}
	r.records = append(r.records, distortionFile)
	return nil
}

func TestSinkRecorderHook(t *testing.T) {
	dir := t.TempDir()
	rec := &capturingRecorder{}
	s, err := New(Config{Dir: dir, Recorder: rec})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.Submit(makeRecord(100, []byte{1}))
	s.Submit(makeRecord(200, nil))
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.records) != 2 {
		t.Fatalf("recorder saw %d records, want 2", len(rec.records))
	}
	if rec.records[0] != "100.0.txt" || rec.records[1] != "" {
		t.Errorf("recorder files = %v", rec.records)
	}
}

func TestSinkRecorderFailureKeepsArtifacts(t *testing.T) {
	dir := t.TempDir()
	rec := &capturingRecorder{fail: true}
	s, err := New(Config{Dir: dir, Recorder: rec})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.Submit(makeRecord(100, []byte{1}))
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if lines := readLogLines(t, s.LogPath()); len(lines) != 1 {
		t.Errorf("log lines = %v, want the record despite index failure", lines)
	}
	if _, err := os.Stat(filepath.Join(s.DistortionDir(), "100.0.txt")); err != nil {
		t.Error("distortion file missing despite index failure")
	}
}
