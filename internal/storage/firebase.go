package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"MatchPoster/internal/config"
	"MatchPoster/internal/model"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// NewFirebaseApp 初始化 Firebase App；未配置凭证文件时使用默认凭证（ADC）
func NewFirebaseApp(ctx context.Context, cfg config.FirebaseConfig, bucket string, logger *logrus.Logger) (*firebase.App, error) {
	fbCfg := &firebase.Config{ProjectID: cfg.ProjectID, StorageBucket: bucket}
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("初始化 Firebase App 失败 (credentials=%q): %w", cfg.CredentialsPath, err)
	}
	logger.WithFields(logrus.Fields{
		"project_id": cfg.ProjectID,
		"bucket":     bucket,
	}).Info("Firebase App 初始化成功")
	return app, nil
}

// FirebaseStore Firebase Storage（GCS）blob 存储
type FirebaseStore struct {
	bucket *gcs.BucketHandle
	logger *logrus.Logger
}

// NewFirebaseStore bucket 为空时使用项目默认 bucket
func NewFirebaseStore(ctx context.Context, app *firebase.App, bucket string, logger *logrus.Logger) (*FirebaseStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取 Firebase Storage 客户端失败: %w", err)
	}
	var handle *gcs.BucketHandle
	if bucket == "" {
		handle, err = client.DefaultBucket()
	} else {
		handle, err = client.Bucket(bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("获取 bucket 失败: %w", err)
	}
	return &FirebaseStore{bucket: handle, logger: logger}, nil
}

func (s *FirebaseStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	if contentType == "" {
		contentType = MimeFromKey(key)
	}
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("上传 blob 失败 %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("上传 blob 失败 %s: %w", key, err)
	}
	s.logger.WithField("key", key).WithField("bytes", len(data)).Debug("blob 已上传")
	return nil
}

func (s *FirebaseStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, "", mapGCSError(key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("读取 blob 失败 %s: %w", key, err)
	}
	contentType := r.Attrs.ContentType
	if contentType == "" {
		contentType = MimeFromKey(key)
	}
	return data, contentType, nil
}

func (s *FirebaseStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		return mapGCSError(key, err)
	}
	return nil
}

func mapGCSError(key string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", model.ErrBlobNotFound, key)
	}
	return fmt.Errorf("blob 操作失败 %s: %w", key, err)
}
