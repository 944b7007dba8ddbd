package compose

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"MatchPoster/internal/layout"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// 字号下限（像素），文本再长也不会缩到看不清
const minFontPx = 10

var (
	boldOnce sync.Once
	boldFont *opentype.Font
	boldErr  error
)

// posterFont 海报统一使用 Go Bold，只解析一次
func posterFont() (*opentype.Font, error) {
	boldOnce.Do(func() {
		boldFont, boldErr = opentype.Parse(gobold.TTF)
	})
	return boldFont, boldErr
}

// faceCache 单次渲染内按字号复用 face。font.Face 不是并发安全的，不能跨渲染共享
type faceCache struct {
	font  *opentype.Font
	faces map[int]font.Face
}

func newFaceCache() (*faceCache, error) {
	f, err := posterFont()
	if err != nil {
		return nil, fmt.Errorf("加载字体失败: %w", err)
	}
	return &faceCache{font: f, faces: make(map[int]font.Face)}, nil
}

func (c *faceCache) face(px int) (font.Face, error) {
	if face, ok := c.faces[px]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    float64(px),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	c.faces[px] = face
	return face, nil
}

func (c *faceCache) Close() {
	for _, face := range c.faces {
		_ = face.Close()
	}
}

// fitFace 选取字号：按 FontScale 换算，超出框宽时等比缩小
func (c *faceCache) fitFace(text string, fontPx float64, maxW int) (font.Face, int, error) {
	px := int(math.Round(fontPx))
	if px < minFontPx {
		px = minFontPx
	}
	face, err := c.face(px)
	if err != nil {
		return nil, 0, err
	}
	w := font.MeasureString(face, text).Ceil()
	if maxW <= 0 || w <= maxW {
		return face, w, nil
	}
	// 先按比例估算，字形取整可能仍略宽，再逐级减小
	px = max(int(math.Floor(float64(px)*float64(maxW)/float64(w))), minFontPx)
	for {
		if face, err = c.face(px); err != nil {
			return nil, 0, err
		}
		w = font.MeasureString(face, text).Ceil()
		if w <= maxW || px <= minFontPx {
			return face, w, nil
		}
		px--
	}
}

// drawText 在 rect 内按对齐方式绘制单行文本，垂直方向以基线居中
func (c *faceCache) drawText(dst *image.NRGBA, rect image.Rectangle, text string, fontPx float64, align layout.Align, alpha float64) error {
	face, w, err := c.fitFace(text, fontPx, rect.Dx())
	if err != nil {
		return err
	}
	m := face.Metrics()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()
	baseline := rect.Min.Y + (rect.Dy()+ascent-descent)/2

	var x int
	switch align {
	case layout.AlignLeft:
		x = rect.Min.X
	case layout.AlignRight:
		x = rect.Max.X - w
	default:
		x = rect.Min.X + (rect.Dx()-w)/2
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: alphaByte(alpha)}),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
	return nil
}

func alphaByte(a float64) uint8 {
	if a <= 0 {
		return 0
	}
	if a >= 1 {
		return 255
	}
	return uint8(math.Round(a * 255))
}
