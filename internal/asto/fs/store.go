package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/artipie/artipie/internal/asto"
)

const tempPrefix = ".asto-"

// New 以 basePath 为根目录构建磁盘存储，整站复用一份实例。
func New(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &Storage{
		basePath: abs,
		locks:    make(map[string]*entryLock),
		now:      time.Now,
	}, nil
}

// Storage 通过 entryLock 避免同一 Key 并发写入，同时复用 basePath。
type Storage struct {
	basePath string
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// stat 返回 key 对应的普通文件信息；目录与不存在的路径都视为 ErrNotFound。
func (s *Storage) stat(key asto.Key) (string, iofs.FileInfo, error) {
	filePath, err := s.entryPath(key)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(filePath)
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return "", nil, asto.NotFoundError(key)
	case err != nil:
		return "", nil, err
	case info.IsDir():
		return "", nil, asto.NotFoundError(key)
	}
	return filePath, info, nil
}

func (s *Storage) Exists(ctx context.Context, key asto.Key) (bool, error) {
	if err := ctx.Err(); err != nil || key.IsRoot() {
		return false, err
	}
	_, _, err := s.stat(key)
	if errors.Is(err, asto.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Storage) Value(ctx context.Context, key asto.Key) (asto.Content, error) {
	if err := asto.CheckValueKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filePath, info, err := s.stat(key)
	if err != nil {
		return nil, err
	}
	return &fileContent{path: filePath, size: info.Size()}, nil
}

// Save 先写入同目录下的临时文件再 rename，读者只会看到完整的旧值或新值。
func (s *Storage) Save(ctx context.Context, key asto.Key, content asto.Content) error {
	if err := asto.CheckValueKey(key); err != nil {
		return err
	}
	filePath, err := s.entryPath(key)
	if err != nil {
		return err
	}

	unlock := s.lockEntry(key)
	defer unlock()

	body, err := content.Open()
	if err != nil {
		return err
	}
	defer body.Close()

	if err := writeAtomic(filePath, &ctxReader{ctx: ctx, r: body}); err != nil {
		return err
	}
	modTime := s.now().UTC()
	return os.Chtimes(filePath, modTime, modTime)
}

func writeAtomic(filePath string, src io.Reader) (err error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, src); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}

func (s *Storage) Delete(ctx context.Context, key asto.Key) error {
	if err := asto.CheckValueKey(key); err != nil {
		return err
	}
	filePath, err := s.entryPath(key)
	if err != nil {
		return err
	}

	unlock := s.lockEntry(key)
	defer unlock()
	if err := os.Remove(filePath); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Storage) Metadata(ctx context.Context, key asto.Key) (asto.Meta, error) {
	if err := asto.CheckValueKey(key); err != nil {
		return asto.Meta{}, err
	}
	_, info, err := s.stat(key)
	if err != nil {
		return asto.Meta{}, err
	}
	return asto.Meta{Size: info.Size(), Updated: info.ModTime().UTC()}, nil
}

func (s *Storage) List(ctx context.Context, prefix asto.Key) ([]asto.Key, error) {
	root := s.basePath
	if !prefix.IsRoot() {
		dir, err := s.entryPath(prefix)
		if err != nil {
			return nil, err
		}
		root = dir
	}

	var keys []asto.Key
	err := filepath.WalkDir(root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		keys = append(keys, asto.NewKey(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}

func (s *Storage) lockEntry(key asto.Key) func() {
	name := key.String()
	s.mu.Lock()
	lock := s.locks[name]
	if lock == nil {
		lock = &entryLock{}
		s.locks[name] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, name)
		}
		s.mu.Unlock()
	}
}

func (s *Storage) entryPath(key asto.Key) (string, error) {
	filePath := filepath.Join(s.basePath, filepath.FromSlash(key.String()))
	if filePath != s.basePath && !strings.HasPrefix(filePath, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return filePath, nil
}

// fileContent opens the backing file on every Open, which makes it replayable.
type fileContent struct {
	path string
	size int64
}

func (c *fileContent) Open() (io.ReadCloser, error) {
	return os.Open(c.path)
}

func (c *fileContent) Size() (int64, bool) {
	return c.size, true
}

// ctxReader 在每次 Read 前检查 ctx，取消后中断写入。
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
