package img

// Encoder defines the codec operations the compressor drives.
type Encoder interface {
	// Open decodes the source image at path
	Open(path string) (*Source, error)

	// Encode renders the source at the given box and quality
	Encode(src *Source, spec EncodeSpec) ([]byte, error)

	// Name returns the encoder name for logging
	Name() string
}

// ImageEncoder implements Encoder with the imaging library.
type ImageEncoder struct{}

func (e *ImageEncoder) Open(path string) (*Source, error) { return Open(path) }

func (e *ImageEncoder) Encode(src *Source, spec EncodeSpec) ([]byte, error) {
	return Encode(src, spec)
}

func (e *ImageEncoder) Name() string { return "image" }
