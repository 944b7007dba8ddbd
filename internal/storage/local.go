package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"MatchPoster/internal/model"

	"github.com/sirupsen/logrus"
)

// LocalStore 本地文件系统 blob 存储，开发与单机部署使用
type LocalStore struct {
	root   string
	logger *logrus.Logger
}

// NewLocalStore 创建本地存储，目录不存在时自动创建
func NewLocalStore(root string, logger *logrus.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("解析存储目录失败: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &LocalStore{root: abs, logger: logger}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: 非法 key %q", model.ErrInvalidRequest, key)
	}
	return p, nil
}

// Put 先写临时文件再改名，读者不会看到半写的文件
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入 blob 失败: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("写入 blob 失败: %w", err)
	}
	s.logger.WithField("key", key).WithField("bytes", len(data)).Debug("blob 已写入")
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: %s", model.ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, "", fmt.Errorf("读取 blob 失败: %w", err)
	}
	return data, MimeFromKey(key), nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", model.ErrBlobNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("删除 blob 失败: %w", err)
	}
	// 顺手清理空的记录目录，失败无所谓
	_ = os.Remove(filepath.Dir(p))
	return nil
}
