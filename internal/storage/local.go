package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const tempPrefix = ".put-"

// LocalStorage stores objects as files under a base directory. Keys map to
// relative paths with forward slashes.
//
// Writes land in a temporary file first and are then renamed (overwrite) or
// hard-linked (create only) into place, so readers never see a partial
// document and two creators of the same key cannot both succeed.
type LocalStorage struct {
	root   string
	logger *slog.Logger
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	root, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	logger.Info("Using local storage", "path", root)
	return &LocalStorage{root: root, logger: logger}, nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.path(key)
	if err != nil {
		return keyErr("put", key, err)
	}
	if len(data) > MaxObjectSize {
		return keyErr("put", key, ErrTooLarge)
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return keyErr("put", key, err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return keyErr("put", key, err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return keyErr("put", key, err)
	}

	if opts.Overwrite {
		err = os.Rename(tmp.Name(), dst)
	} else {
		err = os.Link(tmp.Name(), dst)
		if errors.Is(err, fs.ErrExist) {
			return keyErr("put", key, ErrKeyExists)
		}
	}
	if err != nil {
		return keyErr("put", key, err)
	}

	s.logger.Debug("Stored object", "key", key, "size", len(data))
	return nil
}

func (s *LocalStorage) Get(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	src, err := s.path(key)
	if err != nil {
		return Object{}, keyErr("get", key, err)
	}

	fi, err := os.Stat(src)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Object{}, keyErr("get", key, ErrNotFound)
	case err != nil:
		return Object{}, keyErr("get", key, err)
	case fi.IsDir():
		return Object{}, keyErr("get", key, ErrNotFound)
	case fi.Size() > MaxObjectSize:
		return Object{}, keyErr("get", key, ErrTooLarge)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return Object{}, keyErr("get", key, err)
	}
	return Object{ObjectInfo: s.info(key, fi, data), Data: data}, nil
}

func (s *LocalStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.Contains(prefix, "..") || strings.HasPrefix(prefix, "/") {
		return nil, keyErr("list", prefix, ErrInvalidKey)
	}

	// Walk only the deepest directory the prefix names.
	start := s.root
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		start = filepath.Join(s.root, filepath.FromSlash(prefix[:i]))
	}

	var out []ObjectInfo
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, s.info(key, fi, nil))
		return nil
	})
	if err != nil {
		return nil, keyErr("list", prefix, err)
	}
	return out, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return keyErr("delete", key, err)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return keyErr("delete", key, err)
	}
	s.logger.Debug("Deleted object", "key", key)
	return nil
}

func (s *LocalStorage) info(key string, fi fs.FileInfo, data []byte) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         fi.Size(),
		ContentType:  contentTypeFor(key, data),
		LastModified: fi.ModTime(),
	}
}

// path maps key to a file below the root. Keys that are empty, absolute or
// climb out of the root are rejected.
func (s *LocalStorage) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
