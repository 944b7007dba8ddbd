// Package compose 海报合成：由布局生成场景清单，再交给预览 / 栅格两种渲染器
package compose

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"MatchPoster/internal/config"
	"MatchPoster/internal/model"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

const jpegMime = "image/jpeg"

// Result 合成结果
type Result struct {
	Data     []byte
	MimeType string
	FileName string
}

// Engine 合成引擎
type Engine struct {
	raster   *RasterRenderer
	preview  *PreviewRenderer
	cfg      config.ComposerConfig
	defaults Defaults
	logger   *logrus.Logger
}

// NewEngine 创建合成引擎
func NewEngine(loader AssetLoader, cfg config.ComposerConfig, logger *logrus.Logger) (*Engine, error) {
	fallback, err := ParseHexColor(cfg.FallbackColor)
	if err != nil {
		return nil, err
	}
	opts := RasterOptions{OverlayAlpha: cfg.OverlayAlpha, FallbackColor: fallback}
	return &Engine{
		raster:   NewRasterRenderer(loader, opts, logger),
		preview:  NewPreviewRenderer(cfg.OverlayAlpha),
		cfg:      cfg,
		defaults: Defaults{LogoURL: cfg.DefaultLogoURL, Address: cfg.DefaultAddress},
		logger:   logger,
	}, nil
}

// Compose 按请求绘制最终海报并编码为 JPEG
func (e *Engine) Compose(ctx context.Context, req model.CompositionRequest) (*Result, error) {
	scene, err := BuildScene(req, e.defaults)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	img, err := e.render(ctx, scene, e.cfg.Width, e.cfg.Height)
	if err != nil {
		return nil, err
	}
	data, err := encodeJPEG(img, e.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}
	e.logger.WithFields(logrus.Fields{
		"mode":     scene.Mode,
		"matches":  scene.MatchCount,
		"bytes":    len(data),
		"duration": time.Since(start).String(),
	}).Info("海报合成完成")
	return &Result{Data: data, MimeType: jpegMime, FileName: FileName(e.cfg.BrandName, req.Fixtures)}, nil
}

// Preview 生成预览文档；withImage 时附带低分辨率预览图
func (e *Engine) Preview(ctx context.Context, req model.CompositionRequest, withImage bool) (*PreviewDocument, error) {
	scene, err := BuildScene(req, e.defaults)
	if err != nil {
		return nil, err
	}
	doc := e.preview.Render(scene, FileName(e.cfg.BrandName, req.Fixtures))
	if !withImage {
		return doc, nil
	}
	w := e.cfg.PreviewWidth
	h := w * e.cfg.Height / max(e.cfg.Width, 1)
	img, err := e.render(ctx, scene, w, h)
	if err != nil {
		return nil, err
	}
	data, err := encodeJPEG(img, 80)
	if err != nil {
		return nil, err
	}
	doc.Image = model.DataURL(data, jpegMime)
	return doc, nil
}

func (e *Engine) render(ctx context.Context, scene *Scene, w, h int) (*image.NRGBA, error) {
	if e.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.LoadTimeout)*time.Second)
		defer cancel()
	}
	return e.raster.Render(ctx, scene, w, h)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("编码 JPEG 失败: %w", err)
	}
	return buf.Bytes(), nil
}
