package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"sierraspos/internal/domain"
)

const (
	MaxFileSize = 5 * 1024 * 1024
	MaxWidth    = 800
	jpegQuality = 80
)

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}

// Store keeps uploaded images on local disk and serves them under URLPrefix.
type Store struct {
	Dir       string
	URLPrefix string
}

func NewStore(dir, urlPrefix string) *Store {
	return &Store{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}
}

// SaveImage decodes an upload, shrinks it to MaxWidth when wider and stores
// it as JPEG. It returns the public URL of the stored file.
func (s *Store) SaveImage(prefix, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", fmt.Errorf("unsupported image type %q: %w", ext, domain.ErrInvalidInput)
	}
	raw, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(raw) > MaxFileSize {
		return "", fmt.Errorf("file exceeds %d bytes: %w", MaxFileSize, domain.ErrInvalidInput)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode image: %v: %w", err, domain.ErrInvalidInput)
	}
	if img.Bounds().Dx() > MaxWidth {
		img = resize.Resize(MaxWidth, 0, img, resize.Lanczos3)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.jpg", prefix, uuid.NewString())
	err = writeFile(filepath.Join(s.Dir, name), func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	})
	if err != nil {
		return "", err
	}
	return s.URLPrefix + "/" + name, nil
}

// writeFile creates path and fills it with encode. On any failure the
// partial file is removed.
func writeFile(path string, encode func(io.Writer) error) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if err := encode(out); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}
