package assets

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// URLPrefix is where stored files are served from.
	URLPrefix = "/assets"
	// Fallback is the placeholder served for books without a cover.
	Fallback = "fallback.png"

	defaultMaxSizeMB = 5
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrFileTooLarge         = errors.New("file too large")
	ErrInvalidName          = errors.New("invalid file name")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Config struct {
	Dir           string `envconfig:"ASSETS_DIR" default:"public/assets"`
	MaxFileSizeMB int64  `envconfig:"MAX_FILE_SIZE_MB" default:"5"`
}

type Store struct {
	dir     string
	maxSize int64
	log     *zap.Logger
	now     func() time.Time
}

func NewStore(cfg Config, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create assets dir")
	}
	maxMB := cfg.MaxFileSizeMB
	if maxMB <= 0 {
		maxMB = defaultMaxSizeMB
	}
	return &Store{
		dir:     cfg.Dir,
		maxSize: maxMB << 20,
		log:     log.Named("assets"),
		now:     time.Now,
	}, nil
}

func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Save validates the upload and writes it under a fresh name.
// Nothing is left on disk when it fails.
func (s *Store) Save(r io.Reader, declaredType string) (string, error) {
	declared := normalizeType(declaredType)
	if _, ok := allowedTypes[declared]; !ok {
		return "", ErrUnsupportedMediaType
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", errors.Wrap(err, "read upload")
	}
	if n > s.maxSize {
		return "", ErrFileTooLarge
	}
	ext, ok := allowedTypes[normalizeType(mimetype.Detect(buf.Bytes()).String())]
	if !ok {
		return "", ErrUnsupportedMediaType
	}

	name := s.newName(ext)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", errors.Wrap(err, "write upload")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", errors.Wrap(err, "close upload")
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return "", errors.Wrap(err, "rename upload")
	}
	s.log.Debug("saved", zap.String("file", name), zap.Int64("size", n))
	return name, nil
}

// Delete is a no-op for files that do not exist.
func (s *Store) Delete(name string) error {
	full, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove asset")
	}
	return nil
}

func (s *Store) Exists(name string) bool {
	full, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// Path resolves a bare file name inside the asset directory.
func (s *Store) Path(name string) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

func URLFor(name string) string {
	if name == "" {
		name = Fallback
	}
	return path.Join(URLPrefix, name)
}

// newName takes the extension from the sniffed content, never from the client.
func (s *Store) newName(ext string) string {
	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), uuid.NewString(), ext)
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}

func normalizeType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}
