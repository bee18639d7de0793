// Package upload keeps submission attachments on the local disk.
package upload

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core"
)

var (
	// errors
	ErrNotFound   = errors.New("file not found")
	ErrInvalidKey = errors.New("invalid file key")
	ErrTooLarge   = core.NewRuleError("file is too large")

	keyRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(\.[a-z0-9]{1,10})?$`)
	extRegex = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

type File struct {
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates the upload directory if needed.
func NewStore(conf *core.Config) (*Store, error) {
	if err := os.MkdirAll(conf.Upload.Dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &Store{dir: conf.Upload.Dir, maxBytes: conf.Upload.MaxBytes}, nil
}

// ValidKey tells whether `key` is "<uuid>[.ext]"; nothing else can reach the disk.
func ValidKey(key string) bool {
	return keyRegex.MatchString(key)
}

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save writes `r` under a new key. Files over MaxBytes are rejected & removed.
func (s *Store) Save(filename, contentType string, r io.Reader) (File, error) {
	key := uuid.NewString()
	if ext := strings.ToLower(filepath.Ext(filename)); extRegex.MatchString(ext) {
		key += ext
	}
	fp := filepath.Join(s.dir, key)

	dst, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return File{}, errors.Wrap(err, "creating file")
	}
	n, err := io.Copy(dst, io.LimitReader(r, s.maxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(fp)
		if err == ErrTooLarge {
			return File{}, err
		}
		return File{}, errors.Wrap(err, "writing file")
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return File{Key: key, Filename: filepath.Base(filename), Size: n, ContentType: contentType}, nil
}

// Path returns the location of an existing file.
func (s *Store) Path(key string) (string, error) {
	if !ValidKey(key) {
		return "", ErrInvalidKey
	}
	fp := filepath.Join(s.dir, key)
	if _, err := os.Stat(fp); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", errors.Wrap(err, "stating file")
	}
	return fp, nil
}
