package model

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// RenderStyle 背景生成风格，决定使用哪个提示词模板
type RenderStyle string

const (
	StyleStadium  RenderStyle = "stadium"
	StylePlayers  RenderStyle = "players"
	StyleAbstract RenderStyle = "abstract"
	StylePrestige RenderStyle = "prestige"
	StyleProgram  RenderStyle = "program" // 节目单背景，节目单模式自动使用
)

// Valid 是否为已知风格
func (s RenderStyle) Valid() bool {
	switch s {
	case StyleStadium, StylePlayers, StyleAbstract, StylePrestige, StyleProgram:
		return true
	}
	return false
}

// PosterMode 合成模式
type PosterMode string

const (
	ModeClassic PosterMode = "classic" // 一场一张
	ModeProgram PosterMode = "program" // 同日多场一张
)

// BlobScheme 指向本服务 blob 存储的引用前缀
const BlobScheme = "blob:"

// ImageRef 图片引用：已有地址（URL / blob key）或内联原始字节
type ImageRef struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType,omitempty"`
}

// IsInline 是否为内联字节
func (r ImageRef) IsInline() bool { return len(r.Data) > 0 }

// IsZero 是否为空引用
func (r ImageRef) IsZero() bool { return r.URL == "" && len(r.Data) == 0 }

// BlobKey 若引用指向 blob 存储，返回其 key
func (r ImageRef) BlobKey() (string, bool) {
	if strings.HasPrefix(r.URL, BlobScheme) {
		return strings.TrimPrefix(r.URL, BlobScheme), true
	}
	return "", false
}

// BlobRef 构造指向 blob key 的引用
func BlobRef(key, mimeType string) ImageRef {
	return ImageRef{URL: BlobScheme + key, MimeType: mimeType}
}

// ParseImageRef 解析前端传入的图片字段。data URL 会被解码为内联字节
func ParseImageRef(raw string) (ImageRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ImageRef{}, nil
	}
	if !strings.HasPrefix(raw, "data:") {
		return ImageRef{URL: raw}, nil
	}
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return ImageRef{}, fmt.Errorf("%w: data URL 缺少数据段", ErrInvalidRequest)
	}
	meta := strings.TrimPrefix(parts[0], "data:")
	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == meta {
		return ImageRef{}, fmt.Errorf("%w: 仅支持 base64 data URL", ErrInvalidRequest)
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return ImageRef{}, fmt.Errorf("%w: data URL 解码失败: %v", ErrInvalidRequest, err)
	}
	if len(decoded) == 0 {
		return ImageRef{}, fmt.Errorf("%w: data URL 为空", ErrInvalidRequest)
	}
	return ImageRef{Data: decoded, MimeType: mimeType}, nil
}

// DataURL 将内联字节编码为 data URL
func DataURL(data []byte, mimeType string) string {
	if len(data) == 0 {
		return ""
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Branding 用户品牌信息（页脚）
type Branding struct {
	LogoURL string `json:"logoUrl,omitempty"`
	Address string `json:"address,omitempty"`
	Link    string `json:"link,omitempty"` // 可选，页脚二维码内容
}

// CompositionRequest 一次合成请求：单场（classic）或同日多场（program）
type CompositionRequest struct {
	Fixtures   []Fixture   `json:"fixtures"`
	Style      RenderStyle `json:"style"`
	Mode       PosterMode  `json:"mode"`
	Background ImageRef    `json:"background"`
	Generate   bool        `json:"generate"` // 未提供背景时是否调用生成服务
	Branding   Branding    `json:"branding"`
}

// EffectiveMode 实际合成模式：多于一场即为节目单
func (r CompositionRequest) EffectiveMode() PosterMode {
	if len(r.Fixtures) > 1 {
		return ModeProgram
	}
	return ModeClassic
}

// MatchDate 海报对应的比赛日期（节目单所有场次同日）
func (r CompositionRequest) MatchDate() string {
	if len(r.Fixtures) == 0 {
		return ""
	}
	return r.Fixtures[0].Date
}

// Validate 校验请求。节目单要求所有场次同一天
func (r CompositionRequest) Validate() error {
	if len(r.Fixtures) == 0 {
		return fmt.Errorf("%w: 至少需要一场赛事", ErrInvalidRequest)
	}
	if r.Style != "" && !r.Style.Valid() {
		return fmt.Errorf("%w: 未知风格 %q", ErrInvalidRequest, r.Style)
	}
	var errs []error
	for _, f := range r.Fixtures {
		if err := f.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	date := r.Fixtures[0].Date
	for _, f := range r.Fixtures[1:] {
		if f.Date != date {
			return fmt.Errorf("%w: 节目单赛事日期不一致 %s / %s", ErrInvalidRequest, date, f.Date)
		}
	}
	return nil
}
