// Package source defines the capture stream contract and the
// synthetic sources used for development, benchmarks, and tests.
//
// A source owns its delivery goroutine and pushes timestamped samples
// into a Listener. All sources attached to a session share one clock,
// which is what makes their timestamps correlatable downstream.
package source

import (
	"context"
	"fmt"

	"github.com/smazurov/depthnode/internal/media"
)

// Kind identifies a stream type.
type Kind string

const (
	KindVideo    Kind = "video"
	KindDepth    Kind = "depth"
	KindMetadata Kind = "metadata"
)

// Listener receives samples as sources produce them. Sources call
// from their own delivery goroutines; implementations must hand the
// sample off quickly and never block on downstream work.
type Listener interface {
	OnVideoSample(media.VideoSample)
	OnDepthSample(media.DepthSample)
	OnMetadataSample(media.MetadataSample)
}

// Source is one capture stream. Start and Stop are idempotent; a
// second Start while running and a Stop while stopped are no-ops.
// Stop returns only after the delivery goroutine has exited, so no
// sample is emitted after Stop returns.
type Source interface {
	Kind() Kind
	Start(ctx context.Context, listener Listener) error
	Stop()
}

// DepthSource is a Source whose device can toggle temporal filtering
// while running.
type DepthSource interface {
	Source
	SetFiltering(enabled bool)
}

// Selection names a source configuration.
type Selection string

const (
	// SelectionColor is a color camera: video and metadata streams.
	SelectionColor Selection = "color"
	// SelectionTrueDepth adds a depth stream to video and metadata.
	SelectionTrueDepth Selection = "truedepth"
)

// ParseSelection validates a selection string from config or API
// input.
func ParseSelection(s string) (Selection, error) {
	switch Selection(s) {
	case SelectionColor:
		return SelectionColor, nil
	case SelectionTrueDepth:
		return SelectionTrueDepth, nil
	default:
		return "", fmt.Errorf("unknown source selection %q", s)
	}
}

// HasDepth reports whether the selection includes a depth stream.
func (s Selection) HasDepth() bool {
	return s == SelectionTrueDepth
}

// Set is the trio of sources bound to one capture session. Depth is
// nil for selections without a depth stream.
type Set struct {
	Video    Source
	Depth    DepthSource
	Metadata Source
}

// Provider builds the source set for a selection. A provider error is
// a configuration error: the requested devices cannot serve the
// session and setup fails as a whole.
type Provider interface {
	Sources(selection Selection, clock media.Clock) (*Set, error)
}
