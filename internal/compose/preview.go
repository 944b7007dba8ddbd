package compose

import (
	"fmt"

	"MatchPoster/internal/layout"
	"MatchPoster/internal/model"
)

// PreviewElement 预览文档中的一个元素，位置为相对海报容器的 CSS 百分比
type PreviewElement struct {
	ID          layout.ElementID `json:"id"`
	Kind        string           `json:"kind"`
	Left        string           `json:"left"`
	Top         string           `json:"top"`
	Width       string           `json:"width"`
	Height      string           `json:"height"`
	FontSize    string           `json:"fontSize,omitempty"` // cqh：容器高度的百分之一
	TextAlign   string           `json:"textAlign,omitempty"`
	Opacity     float64          `json:"opacity,omitempty"`
	Text        string           `json:"text,omitempty"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Placeholder bool             `json:"placeholder,omitempty"`
	Payload     string           `json:"payload,omitempty"`
}

// PreviewDocument 前端直接按百分比摆放的预览描述，与最终导出共用同一份场景
type PreviewDocument struct {
	Mode          model.PosterMode `json:"mode"`
	MatchCount    int              `json:"matchCount"`
	AspectRatio   string           `json:"aspectRatio"`
	BackgroundURL string           `json:"backgroundUrl,omitempty"`
	OverlayAlpha  float64          `json:"overlayAlpha"`
	FileName      string           `json:"fileName"`
	Elements      []PreviewElement `json:"elements"`
	Image         string           `json:"image,omitempty"` // 低分辨率预览图（data URL），按需生成
}

// PreviewRenderer 把场景转换为预览文档，不加载任何图片
type PreviewRenderer struct {
	overlayAlpha float64
}

// NewPreviewRenderer 创建预览渲染器
func NewPreviewRenderer(overlayAlpha float64) *PreviewRenderer {
	return &PreviewRenderer{overlayAlpha: overlayAlpha}
}

// Render 生成预览文档
func (p *PreviewRenderer) Render(scene *Scene, fileName string) *PreviewDocument {
	doc := &PreviewDocument{
		Mode:         scene.Mode,
		MatchCount:   scene.MatchCount,
		AspectRatio:  model.PortraitAspect,
		OverlayAlpha: p.overlayAlpha,
		FileName:     fileName,
		Elements:     make([]PreviewElement, 0, len(scene.Items)),
	}
	if !scene.Background.IsZero() {
		doc.BackgroundURL = previewURL(scene.Background)
	}
	for _, it := range scene.Items {
		el := PreviewElement{
			ID:     it.ID,
			Kind:   kindName(it.Kind),
			Left:   percent(it.Box.X),
			Top:    percent(it.Box.Y),
			Width:  percent(it.Box.W),
			Height: percent(it.Box.H),
		}
		if it.Alpha < 1 {
			el.Opacity = it.Alpha
		}
		switch it.Kind {
		case layout.KindText:
			el.Text = it.Text
			el.FontSize = fmt.Sprintf("%.3fcqh", it.Box.FontScale*100)
			el.TextAlign = it.Box.Align.String()
		case layout.KindMark:
			el.ImageURL = previewURL(it.Image)
			el.Placeholder = it.Placeholder
		case layout.KindQR:
			el.Payload = it.Payload
		}
		doc.Elements = append(doc.Elements, el)
	}
	return doc
}

func previewURL(ref model.ImageRef) string {
	if ref.IsInline() {
		return model.DataURL(ref.Data, ref.MimeType)
	}
	return ref.URL
}

func percent(f float64) string {
	return fmt.Sprintf("%.3f%%", f*100)
}

func kindName(k layout.Kind) string {
	switch k {
	case layout.KindMark:
		return "image"
	case layout.KindLine:
		return "line"
	case layout.KindQR:
		return "qr"
	}
	return "text"
}
