package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ncecere/voice_gateway/internal/config"
)

type localStore struct {
	root string
}

func newLocalStore(cfg config.StorageConfig) (*localStore, error) {
	dir := cfg.LocalDir
	if strings.TrimSpace(dir) == "" {
		dir = "./data/audio"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create local storage dir: %w", err)
	}
	return &localStore{root: dir}, nil
}

func (s *localStore) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (ObjectInfo, error) {
	select {
	case <-ctx.Done():
		return ObjectInfo{}, ctx.Err()
	default:
	}
	path, err := s.pathForKey(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return ObjectInfo{}, err
	}
	tempFile, err := os.CreateTemp(filepath.Dir(path), "upload-*.tmp")
	if err != nil {
		return ObjectInfo{}, err
	}
	defer os.Remove(tempFile.Name())
	written, err := io.Copy(tempFile, body)
	if err != nil {
		tempFile.Close()
		return ObjectInfo{}, err
	}
	if err := tempFile.Close(); err != nil {
		return ObjectInfo{}, err
	}
	if err := os.Rename(tempFile.Name(), path); err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, URL: s.URL(key), Size: written, ContentType: opts.ContentType}, nil
}

func (s *localStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	path, err := s.pathForKey(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, ObjectInfo{}, err
	}
	return file, ObjectInfo{Key: key, URL: s.URL(key), Size: stat.Size()}, nil
}

func (s *localStore) Delete(ctx context.Context, key string) error {
	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *localStore) URL(key string) string {
	return "file://" + filepath.Join(s.root, filepath.Clean(key))
}

func (s *localStore) pathForKey(key string) (string, error) {
	cleaned := filepath.Clean(key)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid key: %s", key)
	}
	return filepath.Join(s.root, cleaned), nil
}
