package compose

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"MatchPoster/internal/layout"
	"MatchPoster/internal/model"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

// AssetLoader 图片素材加载（imageload.Chain 实现）
type AssetLoader interface {
	Load(ctx context.Context, ref model.ImageRef) (image.Image, error)
}

// RasterOptions 栅格渲染参数
type RasterOptions struct {
	OverlayAlpha  float64
	FallbackColor color.NRGBA
}

// RasterRenderer 按场景清单绘制最终位图。素材加载失败只降级不报错
type RasterRenderer struct {
	loader AssetLoader
	opts   RasterOptions
	logger *logrus.Logger
}

// NewRasterRenderer 创建栅格渲染器
func NewRasterRenderer(loader AssetLoader, opts RasterOptions, logger *logrus.Logger) *RasterRenderer {
	return &RasterRenderer{loader: loader, opts: opts, logger: logger}
}

// Render 在 width×height 的画布上绘制场景。只有画布无法分配时返回错误（model.ErrNoSurface）
func (r *RasterRenderer) Render(ctx context.Context, scene *Scene, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 || width*height > 64<<20 {
		return nil, fmt.Errorf("%w: %dx%d", model.ErrNoSurface, width, height)
	}
	faces, err := newFaceCache()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrNoSurface, err)
	}
	defer faces.Close()

	canvas := r.background(ctx, scene.Background, width, height)
	if r.opts.OverlayAlpha > 0 {
		canvas = imaging.Overlay(canvas, imaging.New(width, height, color.Black), image.Pt(0, 0), r.opts.OverlayAlpha)
	}

	for _, it := range scene.Items {
		rect := pixelRect(it.Box, width, height)
		switch it.Kind {
		case layout.KindText:
			fontPx := it.Box.FontScale * float64(height)
			if err := faces.drawText(canvas, rect, it.Text, fontPx, it.Box.Align, it.Alpha); err != nil {
				r.logger.WithError(err).WithField("element", it.ID).Warn("文本绘制失败，跳过")
			}
		case layout.KindMark:
			canvas = r.drawMark(ctx, canvas, it, rect, width)
		case layout.KindLine:
			line := imaging.New(rect.Dx(), max(rect.Dy(), 1), color.White)
			canvas = imaging.Overlay(canvas, line, rect.Min, it.Alpha)
		case layout.KindQR:
			canvas = r.drawQR(canvas, it, rect)
		}
	}
	return canvas, nil
}

// background 铺满画布（居中裁剪）；加载失败时纯色填充
func (r *RasterRenderer) background(ctx context.Context, ref model.ImageRef, width, height int) *image.NRGBA {
	if !ref.IsZero() {
		img, err := r.loader.Load(ctx, ref)
		if err == nil {
			return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
		}
		r.logger.WithError(err).Warn("背景加载失败，使用纯色背景")
	}
	return imaging.New(width, height, r.opts.FallbackColor)
}

// drawMark 等比缩放到框内并居中；页脚 logo 底对齐。队徽失败画白色圆形占位，页脚 logo 失败直接忽略
func (r *RasterRenderer) drawMark(ctx context.Context, canvas *image.NRGBA, it Item, rect image.Rectangle, width int) *image.NRGBA {
	var img image.Image
	var err error
	if it.Image.IsZero() {
		err = model.ErrAssetUnavailable
	} else {
		img, err = r.loader.Load(ctx, it.Image)
	}
	if err != nil {
		r.logger.WithError(err).WithField("element", it.ID).Debug("标志加载失败")
		if it.Placeholder {
			fillCircle(canvas, rect, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
		return canvas
	}

	boxW := rect.Dx()
	if it.Box.MaxW > 0 {
		boxW = min(boxW, int(math.Round(it.Box.MaxW*float64(width))))
	}
	fitted := imaging.Fit(img, max(boxW, 1), max(rect.Dy(), 1), imaging.Lanczos)
	b := fitted.Bounds()
	x := rect.Min.X + (rect.Dx()-b.Dx())/2
	y := rect.Min.Y + (rect.Dy()-b.Dy())/2
	if it.ID == layout.FooterMark {
		y = rect.Max.Y - b.Dy()
	}
	return imaging.Overlay(canvas, fitted, image.Pt(x, y), 1)
}

// drawQR 页脚二维码，白底
func (r *RasterRenderer) drawQR(canvas *image.NRGBA, it Item, rect image.Rectangle) *image.NRGBA {
	size := min(rect.Dx(), rect.Dy())
	if size <= 0 {
		return canvas
	}
	code, err := qrcode.New(it.Payload, qrcode.Medium)
	if err != nil {
		r.logger.WithError(err).Warn("二维码生成失败，跳过")
		return canvas
	}
	qr := code.Image(size)
	x := rect.Min.X + (rect.Dx()-size)/2
	y := rect.Min.Y + (rect.Dy()-size)/2
	return imaging.Overlay(canvas, qr, image.Pt(x, y), it.Alpha)
}

// fillCircle 在 rect 中心画实心圆，半径取短边的 0.21
func fillCircle(dst *image.NRGBA, rect image.Rectangle, c color.NRGBA) {
	cx := float64(rect.Min.X+rect.Max.X) / 2
	cy := float64(rect.Min.Y+rect.Max.Y) / 2
	radius := 0.21 * float64(min(rect.Dx(), rect.Dy()))
	r2 := radius * radius
	bounds := dst.Bounds()
	for y := int(cy - radius); y <= int(cy+radius); y++ {
		for x := int(cx - radius); x <= int(cx+radius); x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= r2 && image.Pt(x, y).In(bounds) {
				dst.SetNRGBA(x, y, c)
			}
		}
	}
}

func pixelRect(b layout.Box, width, height int) image.Rectangle {
	x0 := int(math.Round(b.X * float64(width)))
	y0 := int(math.Round(b.Y * float64(height)))
	x1 := int(math.Round(b.Right() * float64(width)))
	y1 := int(math.Round(b.Bottom() * float64(height)))
	return image.Rect(x0, y0, x1, y1)
}

// ParseHexColor 解析 #rgb / #rrggbb
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("无效的颜色值 %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("无效的颜色值 %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
