package ocr

// InputOption mutates a recognition input before submission.
type InputOption func(*Input)

// WithLanguages sets language hints on the input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithPageIndex records the 1-based source page for correlation with results.
func WithPageIndex(page int) InputOption {
	return func(in *Input) { in.PageIndex = page }
}

// WithMetadata sets provider-specific metadata for the input.
func WithMetadata(metadata map[string]string) InputOption {
	return func(in *Input) {
		if len(metadata) == 0 {
			in.Metadata = nil
			return
		}
		in.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			in.Metadata[k] = v
		}
	}
}

// NewInput builds a recognition input from PNG-encoded image data.
func NewInput(image []byte, mode Mode, opts ...InputOption) Input {
	in := Input{Image: image, Mode: mode}
	for _, opt := range opts {
		opt(&in)
	}
	return in
}
