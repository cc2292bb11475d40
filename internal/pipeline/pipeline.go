package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/depthnode/internal/calib"
	"github.com/smazurov/depthnode/internal/events"
	"github.com/smazurov/depthnode/internal/logging"
	"github.com/smazurov/depthnode/internal/media"
	"github.com/smazurov/depthnode/internal/metrics"
	"github.com/smazurov/depthnode/internal/sink"
	"github.com/smazurov/depthnode/internal/source"
)

// State is the pipeline lifecycle state.
type State string

const (
	StateIdle          State = "idle"
	StateConfiguring   State = "configuring"
	StateRunning       State = "running"
	StateReconfiguring State = "reconfiguring"
	StateStopping      State = "stopping"
)

const (
	// defaultTolerance is half the default 33ms frame interval, so
	// samples from adjacent frames never merge into one tick.
	defaultTolerance    = 16 * time.Millisecond
	defaultFlushHorizon = 250 * time.Millisecond
	defaultQueueSize    = 64
)

// BundleHandler consumes one synchronized bundle. Invoked on the
// delivery goroutine; the bundle's buffers are released when the
// handler returns and must not be retained.
type BundleHandler func(*media.Bundle)

// VideoHandler consumes one video frame on the video-only path. Same
// ownership rules as BundleHandler.
type VideoHandler func(*media.VideoSample)

// RegionMapper transforms a detected region from the metadata
// stream's coordinate space into the video stream's space.
type RegionMapper interface {
	MapToVideo(r media.Region) media.Region
}

// IdentityMapper passes regions through unchanged, for sources whose
// streams already share a coordinate space.
type IdentityMapper struct{}

// MapToVideo implements RegionMapper.
func (IdentityMapper) MapToVideo(r media.Region) media.Region { return r }

// Submitter hands calibration records to persistence. Submit must not
// block; the sink satisfies this.
type Submitter interface {
	Submit(rec *calib.Record)
}

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SessionRecorder indexes session lifecycle, for example into the
// archive database. Errors are logged, never fatal.
type SessionRecorder interface {
	SessionStarted(id, selection string, at time.Time) error
	SessionStopped(id string, ticks, bundles, dropped uint64, at time.Time) error
}

// Config configures a Pipeline.
type Config struct {
	// Provider builds the source set per selection. Required.
	Provider source.Provider
	// Selection is the initial source selection; defaults to truedepth.
	Selection source.Selection
	// TolerancePTS is the timestamp window within which samples from
	// different streams correlate into one tick.
	TolerancePTS time.Duration
	// FlushHorizon bounds how long a partial tick waits for a stalled
	// stream.
	FlushHorizon time.Duration
	// QueueSize bounds the delivery queue between sources and the
	// delivery goroutine.
	QueueSize int
	// DepthFiltering is the initial temporal-filtering setting for
	// depth sources.
	DepthFiltering bool
	// Mapper transforms detected regions into video coordinates;
	// defaults to identity.
	Mapper RegionMapper
	// Submitter overrides the built-in sink when set. Used by tests
	// and embedders that manage persistence themselves.
	Submitter Submitter
	// Sink configures the owned persistence sink, opened at session
	// start and closed at stop. Ignored when Submitter is set or Dir
	// is empty.
	Sink sink.Config
	// Publisher receives observational events; may be nil.
	Publisher EventPublisher
	// Sessions indexes session lifecycle; may be nil.
	Sessions SessionRecorder
	// StatsInterval enables periodic PipelineStatsEvent publishing
	// when positive.
	StatsInterval time.Duration
}

// Stats is a point-in-time snapshot of pipeline counters. Counters
// reset at session start.
type Stats struct {
	State          State
	SessionID      string
	Selection      source.Selection
	Uptime         time.Duration
	Ticks          uint64
	TicksAborted   uint64
	Bundles        uint64
	VideoFrames    uint64
	SamplesDropped map[string]uint64
	LastError      string
}

// Dropped sums the per-stream drop counters.
func (s Stats) Dropped() uint64 {
	var n uint64
	for _, v := range s.SamplesDropped {
		n += v
	}
	return n
}

// item is one queued delivery from a source goroutine. Exactly one
// field is set.
type item struct {
	video *media.VideoSample
	depth *media.DepthSample
	meta  *media.MetadataSample
}

// queueListener adapts the source.Listener contract onto the delivery
// queue. Sends block only while the delivery goroutine is mid-tick,
// which is bounded work.
type queueListener struct {
	queue chan item
}

func (l *queueListener) OnVideoSample(s media.VideoSample)       { l.queue <- item{video: &s} }
func (l *queueListener) OnDepthSample(s media.DepthSample)       { l.queue <- item{depth: &s} }
func (l *queueListener) OnMetadataSample(s media.MetadataSample) { l.queue <- item{meta: &s} }

// session is the wiring of one running capture session. The identity,
// clock, and sink live for the whole session; reconfiguration builds
// a fresh session value around them and swaps it in whole, so a
// session is immutable once published through p.sess.
type session struct {
	id        string
	selection source.Selection
	clock     media.Clock
	ctx       context.Context
	started   time.Time
	statsStop chan struct{}

	set   *source.Set
	corr  *Correlator
	queue chan item
	done  chan struct{}

	sink   *sink.Sink
	submit Submitter
}

// Pipeline is the synchronized multi-stream capture pipeline.
type Pipeline struct {
	cfg Config
	log *slog.Logger

	// configMu is the configuration lock: it serializes Start, Stop,
	// and Reconfigure and is held only for the rewiring, never across
	// a session.
	configMu sync.Mutex

	mu    sync.RWMutex
	state State
	sess  *session

	handlersMu    sync.RWMutex
	bundleHandler BundleHandler
	videoHandler  VideoHandler

	depthFilterMu  sync.Mutex
	depthFiltering bool

	cmu         sync.Mutex
	ticks       uint64
	aborted     uint64
	bundles     uint64
	videoFrames uint64
	drops       map[string]uint64
	lastErr     string
}

// New validates the configuration and returns an idle pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Provider == nil {
		return nil, NewError(ErrCodeConfig, "source provider not configured", nil)
	}
	if cfg.Selection == "" {
		cfg.Selection = source.SelectionTrueDepth
	}
	if _, err := source.ParseSelection(string(cfg.Selection)); err != nil {
		return nil, NewError(ErrCodeConfig, "invalid source selection", err)
	}
	if cfg.TolerancePTS <= 0 {
		cfg.TolerancePTS = defaultTolerance
	}
	if cfg.FlushHorizon <= 0 {
		cfg.FlushHorizon = defaultFlushHorizon
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Mapper == nil {
		cfg.Mapper = IdentityMapper{}
	}
	p := &Pipeline{
		cfg:            cfg,
		log:            logging.GetLogger("pipeline"),
		state:          StateIdle,
		depthFiltering: cfg.DepthFiltering,
		drops:          make(map[string]uint64),
	}
	metrics.SetPipelineState(string(StateIdle))
	return p, nil
}

// OnSynchronizedBundle registers the handler for the correlated path.
// Passing nil unregisters; bundles are then discarded silently.
func (p *Pipeline) OnSynchronizedBundle(h BundleHandler) {
	p.handlersMu.Lock()
	p.bundleHandler = h
	p.handlersMu.Unlock()
}

// OnVideoFrame registers the handler for the video-only path, active
// when the selection has no depth stream.
func (p *Pipeline) OnVideoFrame(h VideoHandler) {
	p.handlersMu.Lock()
	p.videoHandler = h
	p.handlersMu.Unlock()
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Selection returns the selection the pipeline is (or will be)
// running with.
func (p *Pipeline) Selection() source.Selection {
	p.mu.RLock()
	if p.sess != nil {
		sel := p.sess.selection
		p.mu.RUnlock()
		return sel
	}
	p.mu.RUnlock()
	return p.cfg.Selection
}

// Start brings the pipeline from Idle to Running: it opens the sink,
// wires the sources for the configured selection, and begins
// delivery. Starting while already running is a no-op. Any setup
// failure tears down whatever was wired and leaves the pipeline Idle.
func (p *Pipeline) Start(ctx context.Context) error {
	p.configMu.Lock()
	defer p.configMu.Unlock()

	if p.State() == StateRunning {
		p.log.Debug("start while running, ignoring")
		return nil
	}
	p.setState(StateConfiguring)
	p.resetCounters()

	clock := media.NewSessionClock()
	set, err := p.cfg.Provider.Sources(p.cfg.Selection, clock)
	if err != nil {
		p.setState(StateIdle)
		return NewError(ErrCodeSourceUnavailable,
			fmt.Sprintf("building sources for selection %q", p.cfg.Selection), err)
	}

	sess := &session{
		id:        uuid.NewString()[:8],
		selection: p.cfg.Selection,
		clock:     clock,
		ctx:       ctx,
		started:   time.Now(),
		statsStop: make(chan struct{}),
		set:       set,
		queue:     make(chan item, p.cfg.QueueSize),
		done:      make(chan struct{}),
	}
	sess.submit = p.cfg.Submitter
	if sess.submit == nil && p.cfg.Sink.Dir != "" {
		sc := p.cfg.Sink
		if sc.Publisher == nil && p.cfg.Publisher != nil {
			sc.Publisher = p.cfg.Publisher
		}
		snk, sinkErr := sink.New(sc)
		if sinkErr != nil {
			p.setState(StateIdle)
			return NewError(ErrCodeConfig, "opening persistence sink", sinkErr)
		}
		sess.sink = snk
		sess.submit = snk
	}
	if sess.selection.HasDepth() {
		sess.corr = NewCorrelator(p.cfg.TolerancePTS, p.cfg.FlushHorizon, true)
	}

	go p.deliver(sess)
	if err := p.startSources(sess); err != nil {
		close(sess.queue)
		<-sess.done
		if sess.sink != nil {
			_ = sess.sink.Close()
		}
		p.setState(StateIdle)
		return NewError(ErrCodeConfig, "starting capture sources", err)
	}
	p.applyDepthFiltering(sess)

	p.mu.Lock()
	p.sess = sess
	p.mu.Unlock()
	p.setState(StateRunning)

	if p.cfg.StatsInterval > 0 && p.cfg.Publisher != nil {
		go p.statsLoop(sess)
	}
	p.publish(events.SessionStartedEvent{
		SessionID: sess.id,
		Selection: string(sess.selection),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if p.cfg.Sessions != nil {
		if recErr := p.cfg.Sessions.SessionStarted(sess.id, string(sess.selection), sess.started); recErr != nil {
			p.log.Warn("indexing session start", "session_id", sess.id, "error", recErr)
		}
	}
	p.log.Info("capture session started", "session_id", sess.id, "selection", sess.selection)
	return nil
}

// Stop tears the session down in order: sources stop emitting, the
// delivery queue drains with the current tick treated as atomic, then
// the sink flushes and closes. Stopping while idle is a no-op.
func (p *Pipeline) Stop() error {
	p.configMu.Lock()
	defer p.configMu.Unlock()

	p.mu.RLock()
	sess := p.sess
	st := p.state
	p.mu.RUnlock()
	if st == StateIdle || sess == nil {
		p.log.Debug("stop while idle, ignoring")
		return nil
	}
	p.setState(StateStopping)

	close(sess.statsStop)
	p.stopDelivery(sess)
	var closeErr error
	if sess.sink != nil {
		closeErr = sess.sink.Close()
	}

	p.mu.Lock()
	p.sess = nil
	p.mu.Unlock()
	p.setState(StateIdle)

	stats := p.Stats()
	reason := "requested"
	if stats.LastError != "" {
		reason = "error"
	}
	p.publish(events.SessionStoppedEvent{
		SessionID: sess.id,
		Reason:    reason,
		Bundles:   stats.Bundles,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if p.cfg.Sessions != nil {
		if recErr := p.cfg.Sessions.SessionStopped(sess.id, stats.Ticks, stats.Bundles, stats.Dropped(), time.Now()); recErr != nil {
			p.log.Warn("indexing session stop", "session_id", sess.id, "error", recErr)
		}
	}
	p.log.Info("capture session stopped",
		"session_id", sess.id, "reason", reason,
		"ticks", stats.Ticks, "bundles", stats.Bundles, "dropped", stats.Dropped())
	if closeErr != nil {
		return NewError(ErrCodeSink, "closing persistence sink", closeErr)
	}
	return nil
}

// Reconfigure switches the source selection. While running, the old
// sources stop and their in-flight ticks drain before the new set is
// wired; the session identity and the sink survive the switch. While
// idle it only records the selection for the next start.
func (p *Pipeline) Reconfigure(sel source.Selection) error {
	if _, err := source.ParseSelection(string(sel)); err != nil {
		return NewError(ErrCodeConfig, "invalid source selection", err)
	}

	p.configMu.Lock()
	defer p.configMu.Unlock()

	p.mu.RLock()
	sess := p.sess
	st := p.state
	p.mu.RUnlock()
	if st != StateRunning || sess == nil {
		p.mu.Lock()
		p.cfg.Selection = sel
		p.mu.Unlock()
		p.log.Debug("selection recorded for next start", "selection", sel)
		return nil
	}
	if sess.selection == sel {
		return nil
	}
	p.setState(StateReconfiguring)

	// Drain the old wiring first so no tick from the previous
	// configuration is processed after the switch.
	p.stopDelivery(sess)

	set, err := p.cfg.Provider.Sources(sel, sess.clock)
	if err != nil {
		// The old sources are already stopped; the session cannot
		// continue on either configuration.
		close(sess.statsStop)
		if sess.sink != nil {
			_ = sess.sink.Close()
		}
		p.mu.Lock()
		p.sess = nil
		p.mu.Unlock()
		p.setState(StateIdle)
		return NewError(ErrCodeSourceUnavailable,
			fmt.Sprintf("building sources for selection %q", sel), err)
	}

	// Stats, Selection, and the filtering toggle snapshot p.sess under
	// p.mu, so the old session is never mutated: the rewired one is
	// built aside and swapped in whole.
	next := &session{
		id:        sess.id,
		selection: sel,
		clock:     sess.clock,
		ctx:       sess.ctx,
		started:   sess.started,
		statsStop: sess.statsStop,
		set:       set,
		queue:     make(chan item, p.cfg.QueueSize),
		done:      make(chan struct{}),
		sink:      sess.sink,
		submit:    sess.submit,
	}
	if sel.HasDepth() {
		next.corr = NewCorrelator(p.cfg.TolerancePTS, p.cfg.FlushHorizon, true)
	}

	go p.deliver(next)
	if err := p.startSources(next); err != nil {
		close(next.queue)
		<-next.done
		close(next.statsStop)
		if next.sink != nil {
			_ = next.sink.Close()
		}
		p.mu.Lock()
		p.sess = nil
		p.mu.Unlock()
		p.setState(StateIdle)
		return NewError(ErrCodeConfig, "starting capture sources", err)
	}
	p.applyDepthFiltering(next)

	p.mu.Lock()
	p.sess = next
	p.cfg.Selection = sel
	p.mu.Unlock()
	p.setState(StateRunning)
	p.log.Info("session reconfigured", "session_id", sess.id, "selection", sel)
	return nil
}

// SetDepthFilteringEnabled toggles temporal filtering on the depth
// source. Takes effect immediately while running, otherwise at the
// next start.
func (p *Pipeline) SetDepthFilteringEnabled(enabled bool) {
	p.depthFilterMu.Lock()
	p.depthFiltering = enabled
	p.depthFilterMu.Unlock()

	p.mu.RLock()
	sess := p.sess
	p.mu.RUnlock()
	if sess != nil && sess.set.Depth != nil {
		sess.set.Depth.SetFiltering(enabled)
	}
	p.log.Info("depth filtering set", "enabled", enabled)
}

// DepthFilteringEnabled reports the current setting.
func (p *Pipeline) DepthFilteringEnabled() bool {
	p.depthFilterMu.Lock()
	defer p.depthFilterMu.Unlock()
	return p.depthFiltering
}

// Stats returns a snapshot of the session counters.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	st := p.state
	sess := p.sess
	p.mu.RUnlock()

	s := Stats{State: st}
	if sess != nil {
		s.SessionID = sess.id
		s.Selection = sess.selection
		s.Uptime = time.Since(sess.started)
	}
	p.cmu.Lock()
	s.Ticks = p.ticks
	s.TicksAborted = p.aborted
	s.Bundles = p.bundles
	s.VideoFrames = p.videoFrames
	s.LastError = p.lastErr
	s.SamplesDropped = make(map[string]uint64, len(p.drops))
	for k, v := range p.drops {
		s.SamplesDropped[k] = v
	}
	p.cmu.Unlock()
	return s
}

func (p *Pipeline) applyDepthFiltering(sess *session) {
	if sess.set.Depth == nil {
		return
	}
	p.depthFilterMu.Lock()
	enabled := p.depthFiltering
	p.depthFilterMu.Unlock()
	sess.set.Depth.SetFiltering(enabled)
}

func (p *Pipeline) startSources(sess *session) error {
	listener := &queueListener{queue: sess.queue}
	srcs := []source.Source{sess.set.Video, sess.set.Metadata}
	if sess.set.Depth != nil {
		srcs = append(srcs, sess.set.Depth)
	}
	for i, src := range srcs {
		if err := src.Start(sess.ctx, listener); err != nil {
			for _, started := range srcs[:i] {
				started.Stop()
			}
			return fmt.Errorf("starting %s source: %w", src.Kind(), err)
		}
	}
	return nil
}

// stopDelivery stops the sources, then drains the delivery goroutine.
// Sources stop first so nothing sends on the queue once it closes.
func (p *Pipeline) stopDelivery(sess *session) {
	sess.set.Video.Stop()
	if sess.set.Depth != nil {
		sess.set.Depth.Stop()
	}
	sess.set.Metadata.Stop()
	close(sess.queue)
	<-sess.done
}

// deliver is the delivery goroutine: the single context on which
// ticks are formed and resolved, strictly in arrival order.
func (p *Pipeline) deliver(sess *session) {
	defer close(sess.done)
	expire := time.NewTicker(p.cfg.FlushHorizon / 2)
	defer expire.Stop()

	for {
		select {
		case it, ok := <-sess.queue:
			if !ok {
				if sess.corr != nil {
					p.resolve(sess, sess.corr.Flush())
				}
				return
			}
			p.ingest(sess, it)
		case <-expire.C:
			if sess.corr != nil {
				p.resolve(sess, sess.corr.Expire(sess.clock.Now()))
			}
		}
	}
}

func (p *Pipeline) ingest(sess *session, it item) {
	if sess.corr == nil {
		// No synchronizer engaged: video frames go straight to the
		// video-only path, detections have no frame to attach to.
		if it.video != nil {
			p.deliverVideoFrame(it.video)
		}
		return
	}
	switch {
	case it.video != nil:
		p.resolve(sess, sess.corr.AddVideo(*it.video))
	case it.depth != nil:
		p.resolve(sess, sess.corr.AddDepth(*it.depth))
	case it.meta != nil:
		p.resolve(sess, sess.corr.AddMetadata(*it.meta))
	}
}

func (p *Pipeline) deliverVideoFrame(s *media.VideoSample) {
	if s.Dropped {
		p.countDrop("video", string(s.Reason), s.Timestamp)
		return
	}
	p.handlersMu.RLock()
	h := p.videoHandler
	p.handlersMu.RUnlock()
	if h != nil {
		h(s)
	}
	s.Buffer.Release()

	p.cmu.Lock()
	p.videoFrames++
	p.cmu.Unlock()
	metrics.IncVideoFrame()
}

func (p *Pipeline) resolve(sess *session, ticks []*Tick) {
	for _, t := range ticks {
		p.resolveTick(sess, t)
	}
}

// resolveTick applies the drop policy and dispatches at most one
// bundle. It performs no blocking I/O; persistence is a non-blocking
// submit.
func (p *Pipeline) resolveTick(sess *session, t *Tick) {
	p.cmu.Lock()
	p.ticks++
	p.cmu.Unlock()
	metrics.IncTick()

	if t.Video == nil || t.Video.Dropped {
		reason := "absent"
		if t.Video != nil {
			reason = string(t.Video.Reason)
		}
		p.countDrop("video", reason, t.Timestamp)
		p.cmu.Lock()
		p.aborted++
		p.cmu.Unlock()
		// The whole tick aborts: nothing downstream sees it.
		if t.Depth != nil && t.Depth.Buffer != nil {
			t.Depth.Buffer.Release()
		}
		p.log.Debug("tick aborted, video unusable",
			"timestamp_ms", t.Timestamp.Millis(), "reason", reason)
		return
	}

	var depthBuf *media.DepthBuffer
	if t.Depth != nil {
		if t.Depth.Dropped {
			// Depth degrades to absent; the tick survives.
			p.countDrop("depth", string(t.Depth.Reason), t.Timestamp)
		} else {
			depthBuf = t.Depth.Buffer
		}
	}
	if depthBuf != nil && sess.submit != nil {
		if rec, ok := calib.Extract(t.Depth); ok {
			sess.submit.Submit(rec)
		}
	}

	var region *media.Region
	if t.Metadata != nil {
		if t.Metadata.Dropped {
			p.countDrop("metadata", string(t.Metadata.Reason), t.Timestamp)
		} else if len(t.Metadata.Regions) > 0 {
			r := p.cfg.Mapper.MapToVideo(t.Metadata.Regions[0])
			region = &r
		}
	}

	p.dispatch(sess, &media.Bundle{
		Video:     t.Video.Buffer,
		Depth:     depthBuf,
		Region:    region,
		Timestamp: t.Video.Timestamp,
	})
}

func (p *Pipeline) dispatch(sess *session, b *media.Bundle) {
	if b.Video == nil {
		b.Release()
		p.fail(NewError(ErrCodeInvariant, "bundle dispatched without video buffer", nil))
		return
	}
	p.handlersMu.RLock()
	h := p.bundleHandler
	p.handlersMu.RUnlock()
	if h != nil {
		h(b)
	}
	b.Release()

	p.cmu.Lock()
	p.bundles++
	p.videoFrames++
	p.cmu.Unlock()
	metrics.IncBundle()
	metrics.IncVideoFrame()
	p.publish(events.BundleDispatchedEvent{
		SessionID:       sess.id,
		TimestampMillis: b.Timestamp.Millis(),
		HasDepth:        b.Depth != nil,
		HasRegion:       b.Region != nil,
	})
}

// fail records a fatal invariant violation and stops the session.
// Stop runs on its own goroutine because fail is called from the
// delivery goroutine, which Stop waits on.
func (p *Pipeline) fail(err *Error) {
	p.cmu.Lock()
	p.lastErr = err.Error()
	p.cmu.Unlock()
	p.log.Error("fatal pipeline error, stopping session", "code", err.Code, "error", err)
	go func() {
		_ = p.Stop()
	}()
}

func (p *Pipeline) countDrop(src, reason string, ts media.Timestamp) {
	metrics.IncSampleDropped(src, reason)
	p.cmu.Lock()
	p.drops[src+"/"+reason]++
	p.cmu.Unlock()
	p.publish(events.SampleDroppedEvent{
		Source:          src,
		Reason:          reason,
		TimestampMillis: ts.Millis(),
	})
	p.log.Debug("sample dropped", "source", src, "reason", reason, "timestamp_ms", ts.Millis())
}

func (p *Pipeline) setState(to State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()
	if from == to {
		return
	}
	metrics.SetPipelineState(string(to))
	p.publish(events.StateChangedEvent{
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	p.log.Debug("state changed", "from", from, "to", to)
}

func (p *Pipeline) publish(ev events.Event) {
	if p.cfg.Publisher != nil {
		p.cfg.Publisher.Publish(ev)
	}
}

func (p *Pipeline) statsLoop(sess *session) {
	ticker := time.NewTicker(p.cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.statsStop:
			return
		case <-ticker.C:
			s := p.Stats()
			p.publish(events.PipelineStatsEvent{
				EventType:      "pipeline_stats",
				State:          string(s.State),
				Ticks:          s.Ticks,
				Bundles:        s.Bundles,
				VideoFrames:    s.VideoFrames,
				SamplesDropped: s.Dropped(),
				SinkQueueDepth: metrics.GetSinkCounters().QueueDepth,
			})
		}
	}
}

func (p *Pipeline) resetCounters() {
	p.cmu.Lock()
	p.ticks = 0
	p.aborted = 0
	p.bundles = 0
	p.videoFrames = 0
	p.drops = make(map[string]uint64)
	p.lastErr = ""
	p.cmu.Unlock()
}
