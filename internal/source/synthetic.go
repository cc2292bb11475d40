package source

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/depthnode/internal/calib"
	"github.com/smazurov/depthnode/internal/logging"
	"github.com/smazurov/depthnode/internal/media"
)

// Defaults for synthetic capture when a config field is zero.
const (
	defaultInterval    = 33 * time.Millisecond
	defaultVideoWidth  = 640
	defaultVideoHeight = 480
	defaultDepthWidth  = 320
	defaultDepthHeight = 240
	defaultPoolSlots   = 8
)

// DropFunc decides per frame whether the source delivers a payload.
// Returning DropNone delivers normally; any other reason emits a
// payload-less sample, the way a device reports late or discarded
// frames.
type DropFunc func(frame int) media.DropReason

// DropEvery returns a DropFunc that drops every nth frame with the
// given reason. n below 1 never drops.
func DropEvery(n int, reason media.DropReason) DropFunc {
	return func(frame int) media.DropReason {
		if n < 1 {
			return media.DropNone
		}
		if frame%n == n-1 {
			return reason
		}
		return media.DropNone
	}
}

// VideoConfig configures a synthetic video source.
type VideoConfig struct {
	Interval  time.Duration
	Width     int
	Height    int
	PoolSlots int
	Drop      DropFunc
}

// SyntheticVideo produces BGRA test pattern frames on a ticker.
type SyntheticVideo struct {
	cfg   VideoConfig
	clock media.Clock
	pool  *media.BufferPool

	startedMu sync.Mutex
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

var _ Source = (*SyntheticVideo)(nil)

// NewSyntheticVideo creates a video source. Zero config fields get
// defaults.
func NewSyntheticVideo(cfg VideoConfig, clock media.Clock) *SyntheticVideo {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Width <= 0 {
		cfg.Width = defaultVideoWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultVideoHeight
	}
	if cfg.PoolSlots <= 0 {
		cfg.PoolSlots = defaultPoolSlots
	}
	return &SyntheticVideo{
		cfg:   cfg,
		clock: clock,
		pool:  media.NewBufferPool(cfg.PoolSlots),
	}
}

// Kind implements Source.
func (s *SyntheticVideo) Kind() Kind { return KindVideo }

// Start implements Source.
func (s *SyntheticVideo) Start(ctx context.Context, listener Listener) error {
	s.startedMu.Lock()
	defer s.startedMu.Unlock()
	if s.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	logging.GetLogger("source").Debug("video source started", "interval", s.cfg.Interval)
	go s.run(runCtx, listener, s.done)
	return nil
}

// Stop implements Source.
func (s *SyntheticVideo) Stop() {
	s.startedMu.Lock()
	if !s.started {
		s.startedMu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.startedMu.Unlock()

	cancel()
	<-done
}

func (s *SyntheticVideo) run(ctx context.Context, listener Listener, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emit(listener, frame)
			frame++
		}
	}
}

func (s *SyntheticVideo) emit(listener Listener, frame int) {
	ts := s.clock.Now()
	if s.cfg.Drop != nil {
		if reason := s.cfg.Drop(frame); reason != media.DropNone {
			listener.OnVideoSample(media.VideoSample{Timestamp: ts, Dropped: true, Reason: reason})
			return
		}
	}
	buf := s.pool.AcquireVideo(s.cfg.Width, s.cfg.Height, s.cfg.Width*4, media.FormatBGRA)
	if buf == nil {
		listener.OnVideoSample(media.VideoSample{Timestamp: ts, Dropped: true, Reason: media.DropOutOfBuffers})
		return
	}
	fillVideoPattern(buf, frame)
	listener.OnVideoSample(media.VideoSample{Buffer: buf, Timestamp: ts})
}

func fillVideoPattern(buf *media.VideoBuffer, frame int) {
	for y := 0; y < buf.Height; y++ {
		row := buf.Data[y*buf.BytesPerRow : y*buf.BytesPerRow+buf.Width*4]
		for x := 0; x < buf.Width; x++ {
			i := x * 4
			row[i] = byte(x + frame)
			row[i+1] = byte(y + frame)
			row[i+2] = byte(frame)
			row[i+3] = 0xff
		}
	}
}

// DepthConfig configures a synthetic depth source.
type DepthConfig struct {
	Interval  time.Duration
	Width     int
	Height    int
	PoolSlots int
	// Calibration is attached to every emitted buffer. Nil means the
	// device reports no calibration; DefaultCalibration gives a
	// realistic one.
	Calibration *calib.Record
	Drop        DropFunc
}

// SyntheticDepth produces half precision disparity maps with an
// attached calibration payload.
type SyntheticDepth struct {
	cfg      DepthConfig
	clock    media.Clock
	pool     *media.BufferPool
	payload  []byte
	filtered atomic.Bool

	startedMu sync.Mutex
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

var _ DepthSource = (*SyntheticDepth)(nil)

// NewSyntheticDepth creates a depth source. Zero config fields get
// defaults.
func NewSyntheticDepth(cfg DepthConfig, clock media.Clock) (*SyntheticDepth, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Width <= 0 {
		cfg.Width = defaultDepthWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultDepthHeight
	}
	if cfg.PoolSlots <= 0 {
		cfg.PoolSlots = defaultPoolSlots
	}

	var payload []byte
	if cfg.Calibration != nil {
		var err error
		payload, err = cfg.Calibration.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encoding calibration payload: %w", err)
		}
	}

	s := &SyntheticDepth{
		cfg:     cfg,
		clock:   clock,
		pool:    media.NewBufferPool(cfg.PoolSlots),
		payload: payload,
	}
	s.filtered.Store(true)
	return s, nil
}

// Kind implements Source.
func (s *SyntheticDepth) Kind() Kind { return KindDepth }

// SetFiltering implements DepthSource. Takes effect on the next
// emitted buffer.
func (s *SyntheticDepth) SetFiltering(enabled bool) {
	s.filtered.Store(enabled)
}

// Start implements Source.
func (s *SyntheticDepth) Start(ctx context.Context, listener Listener) error {
	s.startedMu.Lock()
	defer s.startedMu.Unlock()
	if s.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	logging.GetLogger("source").Debug("depth source started",
		"interval", s.cfg.Interval, "calibrated", len(s.payload) > 0)
	go s.run(runCtx, listener, s.done)
	return nil
}

// Stop implements Source.
func (s *SyntheticDepth) Stop() {
	s.startedMu.Lock()
	if !s.started {
		s.startedMu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.startedMu.Unlock()

	cancel()
	<-done
}

func (s *SyntheticDepth) run(ctx context.Context, listener Listener, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emit(listener, frame)
			frame++
		}
	}
}

func (s *SyntheticDepth) emit(listener Listener, frame int) {
	ts := s.clock.Now()
	if s.cfg.Drop != nil {
		if reason := s.cfg.Drop(frame); reason != media.DropNone {
			listener.OnDepthSample(media.DepthSample{Timestamp: ts, Dropped: true, Reason: reason})
			return
		}
	}
	buf := s.pool.AcquireDepth(s.cfg.Width, s.cfg.Height, s.cfg.Width*2, media.FormatDepthFloat16)
	if buf == nil {
		listener.OnDepthSample(media.DepthSample{Timestamp: ts, Dropped: true, Reason: media.DropOutOfBuffers})
		return
	}
	buf.Filtered = s.filtered.Load()
	buf.Calibration = s.payload
	fillDepthPattern(buf, frame)
	listener.OnDepthSample(media.DepthSample{Buffer: buf, Timestamp: ts})
}

func fillDepthPattern(buf *media.DepthBuffer, frame int) {
	for y := 0; y < buf.Height; y++ {
		row := buf.Data[y*buf.BytesPerRow : y*buf.BytesPerRow+buf.Width*2]
		for x := 0; x < buf.Width; x++ {
			// A diagonal wave is enough to look like disparity.
			v := uint16((x + y + frame*4) & 0x3fff)
			row[x*2] = byte(v)
			row[x*2+1] = byte(v >> 8)
		}
	}
}

// MetadataConfig configures a synthetic metadata source.
type MetadataConfig struct {
	Interval time.Duration
	// Regions scripts the detections per frame. Nil gets a single
	// slowly orbiting region.
	Regions func(frame int) []media.Region
	Drop    DropFunc
}

// SyntheticMetadata produces scripted detection regions.
type SyntheticMetadata struct {
	cfg   MetadataConfig
	clock media.Clock

	startedMu sync.Mutex
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

var _ Source = (*SyntheticMetadata)(nil)

// NewSyntheticMetadata creates a metadata source. Zero config fields
// get defaults.
func NewSyntheticMetadata(cfg MetadataConfig, clock media.Clock) *SyntheticMetadata {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Regions == nil {
		cfg.Regions = orbitingRegion
	}
	return &SyntheticMetadata{cfg: cfg, clock: clock}
}

func orbitingRegion(frame int) []media.Region {
	t := float64(frame) * 0.05
	return []media.Region{{
		X: 0.4 + 0.2*math.Sin(t),
		Y: 0.4 + 0.2*math.Cos(t),
		W: 0.2,
		H: 0.2,
	}}
}

// Kind implements Source.
func (s *SyntheticMetadata) Kind() Kind { return KindMetadata }

// Start implements Source.
func (s *SyntheticMetadata) Start(ctx context.Context, listener Listener) error {
	s.startedMu.Lock()
	defer s.startedMu.Unlock()
	if s.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	go s.run(runCtx, listener, s.done)
	return nil
}

// Stop implements Source.
func (s *SyntheticMetadata) Stop() {
	s.startedMu.Lock()
	if !s.started {
		s.startedMu.Unlock()
		return
	}
	s.started = false
	cancel, done := s.cancel, s.done
	s.startedMu.Unlock()

	cancel()
	<-done
}

func (s *SyntheticMetadata) run(ctx context.Context, listener Listener, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emit(listener, frame)
			frame++
		}
	}
}

func (s *SyntheticMetadata) emit(listener Listener, frame int) {
	ts := s.clock.Now()
	if s.cfg.Drop != nil {
		if reason := s.cfg.Drop(frame); reason != media.DropNone {
			listener.OnMetadataSample(media.MetadataSample{Timestamp: ts, Dropped: true, Reason: reason})
			return
		}
	}
	listener.OnMetadataSample(media.MetadataSample{Regions: s.cfg.Regions(frame), Timestamp: ts})
}

// SyntheticProvider builds synthetic source sets. The zero value is
// usable and produces defaults for every stream.
type SyntheticProvider struct {
	Video    VideoConfig
	Depth    DepthConfig
	Metadata MetadataConfig
	// Unavailable simulates selections whose devices cannot be
	// opened; requesting one fails session setup.
	Unavailable []Selection
}

var _ Provider = (*SyntheticProvider)(nil)

// Sources implements Provider.
func (p *SyntheticProvider) Sources(selection Selection, clock media.Clock) (*Set, error) {
	for _, u := range p.Unavailable {
		if u == selection {
			return nil, fmt.Errorf("no capture device for selection %q", selection)
		}
	}

	set := &Set{
		Video:    NewSyntheticVideo(p.Video, clock),
		Metadata: NewSyntheticMetadata(p.Metadata, clock),
	}
	if selection.HasDepth() {
		depthCfg := p.Depth
		if depthCfg.Calibration == nil {
			depthCfg.Calibration = DefaultCalibration()
		}
		depth, err := NewSyntheticDepth(depthCfg, clock)
		if err != nil {
			return nil, err
		}
		set.Depth = depth
	}
	return set, nil
}

// DefaultCalibration returns a fully populated calibration record in
// the range a front facing depth camera reports.
func DefaultCalibration() *calib.Record {
	pixelSize := float32(0.0014)
	table := make([]byte, 128)
	for i := range table {
		table[i] = byte(i)
	}
	return &calib.Record{
		Intrinsic:            &calib.Matrix3{2750, 0, 320, 0, 2750, 240, 0, 0, 1},
		ExtrinsicRotation:    &calib.Matrix3{1, 0, 0, 0, 1, 0, 0, 0, 1},
		ExtrinsicTranslation: &calib.Vector3{0, 0, 0},
		Reference:            &calib.Dimensions{Width: 640, Height: 480},
		PixelSize:            &pixelSize,
		DistortionCenter:     &calib.Point2{319.5, 239.5},
		DistortionTable:      table,
	}
}
