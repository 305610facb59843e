package filestore

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core/course"
)

// URLPrefix is the public path under which stored files are served.
const URLPrefix = "/uploads"

// LocalStore keeps uploaded files in a directory of the local disk.
type LocalStore struct {
	dir string
}

var _ course.FileStore = (*LocalStore)(nil)

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating uploads dir")
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// Save writes r under a random name keeping the extension of filename.
func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(filename)))

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, errors.Wrap(err, "creating file")
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", 0, errors.Wrap(err, "writing file")
	}
	return path.Join(URLPrefix, name), size, nil
}

// Remove deletes a file previously returned by Save. Missing files are ignored.
func (s *LocalStore) Remove(p string) error {
	name := path.Base(p)
	if name == "." || name == "/" || !strings.HasPrefix(p, URLPrefix+"/") {
		return errors.Errorf("invalid stored file path %q", p)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}
