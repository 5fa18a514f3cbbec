package improc

// Package improc defines the abstraction layer for plugging image-processing
// backends (for example, OpenCV) into the document scanning pipeline. The
// interface is intentionally small and value-oriented so backends can be
// native libraries or pure-Go implementations without leaking provider
// concerns into callers.
