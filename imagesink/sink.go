package imagesink

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// DefaultExtension is used when a MIME type has no known extension
const DefaultExtension = ".png"

// maxSuffix bounds the collision counter for images saved in the same second
const maxSuffix = 1000

// IOError reports a failure to persist an image
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("image sink: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Sink writes inline image payloads under a single output directory
type Sink struct {
	dir string
	log zerolog.Logger
}

// Option configures a Sink
type Option func(*Sink)

// WithLogger sets the sink's logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sink) {
		s.log = l
	}
}

// New creates a sink writing into dir. The directory is created lazily.
func New(dir string, opts ...Option) *Sink {
	s := &Sink{
		dir: dir,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the output directory
func (s *Sink) Dir() string {
	return s.dir
}

// Save writes data to image_<clockSeconds><ext> and returns the path.
// Existing files are never overwritten: if the name is taken, a counter
// suffix is appended (image_<clockSeconds>_1<ext>, ...).
func (s *Sink) Save(data []byte, mimeType string, clockSeconds int64) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &IOError{Op: "mkdir", Path: s.dir, Err: err}
	}

	ext := ExtensionFor(mimeType)
	if strings.TrimSpace(mimeType) == "" {
		ext = sniffExtension(data)
	}

	base := fmt.Sprintf("image_%d", clockSeconds)
	for n := 0; n < maxSuffix; n++ {
		name := base + ext
		if n > 0 {
			name = fmt.Sprintf("%s_%d%s", base, n, ext)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", &IOError{Op: "create", Path: path, Err: err}
		}

		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", &IOError{Op: "write", Path: path, Err: err}
		}
		if err := f.Close(); err != nil {
			return "", &IOError{Op: "close", Path: path, Err: err}
		}

		s.log.Debug().
			Str("path", path).
			Str("mime_type", mimeType).
			Int("bytes", len(data)).
			Msg("image saved")
		return path, nil
	}

	return "", &IOError{Op: "create", Path: filepath.Join(s.dir, base+ext), Err: os.ErrExist}
}

// ExtensionFor maps a MIME type to a file extension, falling back to .png
func ExtensionFor(mimeType string) string {
	mt := strings.TrimSpace(mimeType)
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if mt == "" {
		return DefaultExtension
	}

	m := mimetype.Lookup(strings.ToLower(mt))
	if m == nil || m.Extension() == "" {
		return DefaultExtension
	}
	return m.Extension()
}

// sniffExtension is used when the payload arrives without a MIME type
func sniffExtension(data []byte) string {
	m := mimetype.Detect(data)
	if !strings.HasPrefix(m.String(), "image/") || m.Extension() == "" {
		return DefaultExtension
	}
	return m.Extension()
}
