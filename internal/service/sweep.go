package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RetentionSweeper 定时清理过期海报
type RetentionSweeper struct {
	gallery  *GalleryService
	interval time.Duration
	batch    int
	logger   *logrus.Logger
}

// NewRetentionSweeper interval <= 0 表示关闭
func NewRetentionSweeper(gallery *GalleryService, interval time.Duration, batch int, logger *logrus.Logger) *RetentionSweeper {
	return &RetentionSweeper{gallery: gallery, interval: interval, batch: batch, logger: logger}
}

// Run 执行一轮清理
func (s *RetentionSweeper) Run(ctx context.Context) error {
	removed, err := s.gallery.Sweep(ctx, s.batch)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("过期海报清理完成")
	}
	return nil
}

// Start 启动即执行一轮，之后按间隔执行，ctx 结束时退出
func (s *RetentionSweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("过期海报清理已关闭")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Warn("过期海报清理失败")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
