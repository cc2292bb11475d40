// Package media defines the sample and buffer model shared by capture
// sources, the synchronization pipeline, and the persistence sink.
//
// Samples are timestamped on a single session clock so that streams
// produced by independently clocked devices can be correlated. Pixel
// buffers are pooled and reference the pool they came from; releasing
// a buffer returns it for reuse.
package media
