// Package sink persists calibration records off the capture path.
//
// A single worker goroutine consumes a bounded queue, writes each
// record's raw distortion table, then appends its line to the
// calibration log. Submission never blocks: when the queue is full
// the record is dropped with a warning, and a write failure drops
// only the record it hit, leaving no partial artifacts. The capture
// pipeline keeps running in both cases.
package sink

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/smazurov/depthnode/internal/calib"
	"github.com/smazurov/depthnode/internal/events"
	"github.com/smazurov/depthnode/internal/logging"
	"github.com/smazurov/depthnode/internal/metrics"
)

const (
	calibLogName      = "calib.log"
	distortionDirName = "distortion"

	defaultQueueSize = 256
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// Recorder indexes persisted records, for example into the archive
// database. Called from the sink worker goroutine only, after the
// record reached disk.
type Recorder interface {
	RecordCalibration(rec *calib.Record, distortionFile string) error
}

// Config configures a Sink.
type Config struct {
	// Dir receives the calibration log and the distortion directory.
	Dir string
	// QueueSize bounds pending submissions; zero means the default.
	QueueSize int
	// FS defaults to the real filesystem.
	FS FS
	// Publisher receives persistence events; may be nil.
	Publisher EventPublisher
	// Recorder indexes persisted records; may be nil.
	Recorder Recorder
}

// Sink writes calibration artifacts from its own goroutine.
type Sink struct {
	dir           string
	distortionDir string
	fs            FS
	logFile       File
	queue         chan *calib.Record
	publisher     EventPublisher
	recorder      Recorder
	log           *slog.Logger

	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// New opens the sink's artifacts and starts the worker. The
// calibration log is truncated and the distortion directory is
// recreated, so every sink starts from empty files. Open failures are
// fatal: a sink that cannot reach its directory must fail session
// setup, not limp along.
func New(cfg Config) (*Sink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("sink: directory not configured")
	}
	fs := cfg.FS
	if fs == nil {
		fs = OSFS{}
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	if err := fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: creating %s: %w", cfg.Dir, err)
	}
	distortionDir := filepath.Join(cfg.Dir, distortionDirName)
	if err := fs.RemoveAll(distortionDir); err != nil {
		return nil, fmt.Errorf("sink: clearing %s: %w", distortionDir, err)
	}
	if err := fs.MkdirAll(distortionDir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: creating %s: %w", distortionDir, err)
	}
	logFile, err := fs.Create(filepath.Join(cfg.Dir, calibLogName))
	if err != nil {
		return nil, fmt.Errorf("sink: opening calibration log: %w", err)
	}

	s := &Sink{
		dir:           cfg.Dir,
		distortionDir: distortionDir,
		fs:            fs,
		logFile:       logFile,
		queue:         make(chan *calib.Record, queueSize),
		publisher:     cfg.Publisher,
		recorder:      cfg.Recorder,
		log:           logging.GetLogger("sink"),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

// Dir returns the sink's artifact directory.
func (s *Sink) Dir() string { return s.dir }

// LogPath returns the calibration log path.
func (s *Sink) LogPath() string { return filepath.Join(s.dir, calibLogName) }

// DistortionDir returns the distortion table directory.
func (s *Sink) DistortionDir() string { return s.distortionDir }

// Submit enqueues a record for persistence and returns immediately.
// A full queue drops the record; a closed sink ignores it. Records
// are persisted in submission order.
func (s *Sink) Submit(rec *calib.Record) {
	if rec == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn("submit after close, dropping calibration record",
			"timestamp_ms", rec.TimestampMillis)
		return
	}
	select {
	case s.queue <- rec:
		metrics.IncSinkSubmitted()
		metrics.SetSinkQueueDepth(len(s.queue))
	default:
		metrics.IncSinkDropped()
		s.log.Warn("sink queue full, dropping calibration record",
			"timestamp_ms", rec.TimestampMillis)
		s.publishError("queue", fmt.Errorf("queue full, capacity %d", cap(s.queue)))
	}
}

// Close drains pending submissions, flushes, and closes the log.
// Safe to call more than once; later calls return the first result.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.queue)
		s.wg.Wait()

		if err := s.logFile.Sync(); err != nil {
			s.log.Error("syncing calibration log", "error", err)
			s.closeErr = err
		}
		if err := s.logFile.Close(); err != nil {
			s.log.Error("closing calibration log", "error", err)
			if s.closeErr == nil {
				s.closeErr = err
			}
		}
		s.log.Debug("sink closed", "dir", s.dir)
	})
	return s.closeErr
}

func (s *Sink) run() {
	defer s.wg.Done()
	for rec := range s.queue {
		s.persist(rec)
		metrics.SetSinkQueueDepth(len(s.queue))
	}
}

// persist writes one record, distortion table first: the log line
// lands last, so a record never appears in the log until everything
// it references is on disk. Any failure drops the record whole and
// leaves the sink running; persistence must never push back on
// capture.
func (s *Sink) persist(rec *calib.Record) {
	distortionFile := ""
	if len(rec.DistortionTable) > 0 {
		name := fmt.Sprintf("%.1f.txt", rec.TimestampMillis)
		path := filepath.Join(s.distortionDir, name)
		if err := s.fs.WriteFile(path, rec.DistortionTable, 0o644); err != nil {
			metrics.IncSinkFailure("distortion")
			s.log.Error("writing distortion table, record dropped",
				"timestamp_ms", rec.TimestampMillis, "error", err)
			s.publishError("distortion", err)
			return
		}
		distortionFile = name
	}

	line := fmt.Sprintf("%.1f, %s\n", rec.TimestampMillis, rec.Description())
	if _, err := s.logFile.Write([]byte(line)); err != nil {
		metrics.IncSinkFailure("log")
		s.log.Error("writing calibration log line, record dropped",
			"timestamp_ms", rec.TimestampMillis, "error", err)
		s.publishError("log", err)
		if distortionFile != "" {
			// A dropped record leaves no artifacts behind.
			_ = s.fs.RemoveAll(filepath.Join(s.distortionDir, distortionFile))
		}
		return
	}

	metrics.IncSinkPersisted()
	if s.recorder != nil {
		if err := s.recorder.RecordCalibration(rec, distortionFile); err != nil {
			// The artifacts are on disk; a failed index entry is not
			// worth dropping them for.
			metrics.IncSinkFailure("index")
			s.log.Warn("indexing calibration record",
				"timestamp_ms", rec.TimestampMillis, "error", err)
		}
	}
	if s.publisher != nil {
		s.publisher.Publish(events.CalibrationPersistedEvent{
			TimestampMillis: rec.TimestampMillis,
			Description:     rec.Description(),
			DistortionBytes: len(rec.DistortionTable),
		})
	}
}

func (s *Sink) publishError(stage string, err error) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(events.SinkErrorEvent{
		Stage:     stage,
		Error:     err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
