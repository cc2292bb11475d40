package pipeline

import (
	"time"

	"github.com/smazurov/depthnode/internal/media"
)

// Tick is one synchronization event: the samples from each subscribed
// stream whose timestamps fall within the correlation tolerance of
// each other. A slot is nil when its stream contributed nothing for
// this instant, which is normal, not an error.
type Tick struct {
	Timestamp media.Timestamp
	Video     *media.VideoSample
	Depth     *media.DepthSample
	Metadata  *media.MetadataSample
}

// Correlator groups per-stream samples into ticks. It is not safe for
// concurrent use; the delivery goroutine is its only caller.
//
// Ticks flush strictly in formation order. A tick becomes flushable
// when every subscribed stream has contributed, or when every stream
// still missing has already reported a later sample, proving nothing
// more can arrive for it. The flush horizon bounds how long a partial
// tick may wait when a stream stalls entirely.
type Correlator struct {
	tolerance time.Duration
	horizon   time.Duration
	wantDepth bool

	// pending is ordered by Timestamp; only the head may flush.
	pending []*Tick

	seenVideo media.Timestamp
	seenDepth media.Timestamp
	seenMeta  media.Timestamp
	hasVideo  bool
	hasDepth  bool
	hasMeta   bool
}

// NewCorrelator creates a correlator for a session. wantDepth is true
// when the selection subscribes a depth stream.
func NewCorrelator(tolerance, horizon time.Duration, wantDepth bool) *Correlator {
	return &Correlator{
		tolerance: tolerance,
		horizon:   horizon,
		wantDepth: wantDepth,
	}
}

// AddVideo ingests a video sample and returns any ticks that became
// flushable, in order.
func (c *Correlator) AddVideo(s media.VideoSample) []*Tick {
	t := c.place(s.Timestamp, func(t *Tick) bool { return t.Video == nil })
	t.Video = &s
	c.seenVideo, c.hasVideo = s.Timestamp, true
	return c.takeReady()
}

// AddDepth ingests a depth sample and returns any ticks that became
// flushable, in order.
func (c *Correlator) AddDepth(s media.DepthSample) []*Tick {
	t := c.place(s.Timestamp, func(t *Tick) bool { return t.Depth == nil })
	t.Depth = &s
	c.seenDepth, c.hasDepth = s.Timestamp, true
	return c.takeReady()
}

// AddMetadata ingests a metadata sample and returns any ticks that
// became flushable, in order.
func (c *Correlator) AddMetadata(s media.MetadataSample) []*Tick {
	t := c.place(s.Timestamp, func(t *Tick) bool { return t.Metadata == nil })
	t.Metadata = &s
	c.seenMeta, c.hasMeta = s.Timestamp, true
	return c.takeReady()
}

// Expire flushes head ticks older than the horizon relative to now.
// Called periodically so a stalled stream cannot hold ticks forever.
func (c *Correlator) Expire(now media.Timestamp) []*Tick {
	var out []*Tick
	for len(c.pending) > 0 {
		head := c.pending[0]
		if now.Duration()-head.Timestamp.Duration() < c.horizon {
			break
		}
		out = append(out, head)
		c.pending = c.pending[1:]
	}
	return out
}

// Flush drains every pending tick regardless of completeness. Used at
// session teardown so in-flight work resolves before resources go
// away.
func (c *Correlator) Flush() []*Tick {
	out := c.pending
	c.pending = nil
	return out
}

// Pending reports how many ticks are waiting for more samples.
func (c *Correlator) Pending() int {
	return len(c.pending)
}

// place finds the pending tick whose timestamp matches ts and whose
// slot is still free, or forms a new tick in timestamp order.
func (c *Correlator) place(ts media.Timestamp, free func(*Tick) bool) *Tick {
	for _, t := range c.pending {
		if c.matches(t.Timestamp, ts) && free(t) {
			return t
		}
	}
	t := &Tick{Timestamp: ts}
	i := len(c.pending)
	for i > 0 && c.pending[i-1].Timestamp > ts {
		i--
	}
	c.pending = append(c.pending, nil)
	copy(c.pending[i+1:], c.pending[i:])
	c.pending[i] = t
	return t
}

func (c *Correlator) matches(a, b media.Timestamp) bool {
	d := a.Duration() - b.Duration()
	if d < 0 {
		d = -d
	}
	return d <= c.tolerance
}

// takeReady pops flushable ticks from the head. Stopping at the first
// unready tick preserves formation order even when a later tick is
// already complete.
func (c *Correlator) takeReady() []*Tick {
	var out []*Tick
	for len(c.pending) > 0 && c.ready(c.pending[0]) {
		out = append(out, c.pending[0])
		c.pending = c.pending[1:]
	}
	return out
}

func (c *Correlator) ready(t *Tick) bool {
	if t.Video != nil && t.Metadata != nil && (!c.wantDepth || t.Depth != nil) {
		return true
	}
	// Every missing stream must have moved past this tick.
	if t.Video == nil && !c.passed(c.seenVideo, c.hasVideo, t.Timestamp) {
		return false
	}
	if t.Metadata == nil && !c.passed(c.seenMeta, c.hasMeta, t.Timestamp) {
		return false
	}
	if c.wantDepth && t.Depth == nil && !c.passed(c.seenDepth, c.hasDepth, t.Timestamp) {
		return false
	}
	return true
}

func (c *Correlator) passed(seen media.Timestamp, has bool, ts media.Timestamp) bool {
	return has && seen.Duration() > ts.Duration()+c.tolerance
}
