package compose

import (
	"fmt"
	"strings"

	"MatchPoster/internal/layout"
	"MatchPoster/internal/model"
)

// Item 场景中的一个绘制项，坐标沿用 layout 的比例值
type Item struct {
	ID          layout.ElementID `json:"id"`
	Kind        layout.Kind      `json:"-"`
	Box         layout.Box       `json:"box"`
	Text        string           `json:"text,omitempty"`
	Image       model.ImageRef   `json:"image,omitempty"`
	Placeholder bool             `json:"placeholder,omitempty"` // 图片加载失败时画圆形占位
	Payload     string           `json:"payload,omitempty"`     // 二维码内容
	Alpha       float64          `json:"alpha,omitempty"`       // 文本 / 线条不透明度
}

// Scene 两种渲染器共用的绘制清单，按绘制顺序排列
type Scene struct {
	Mode       model.PosterMode `json:"mode"`
	MatchCount int              `json:"matchCount"`
	Background model.ImageRef   `json:"background"`
	Items      []Item           `json:"items"`
}

// Defaults 用户未设置品牌信息时的默认值
type Defaults struct {
	LogoURL string
	Address string
}

// BuildScene 由合成请求与布局生成绘制清单。节目单按请求中的顺序逐行排列
func BuildScene(req model.CompositionRequest, defaults Defaults) (*Scene, error) {
	n := len(req.Fixtures)
	elems, err := layout.Elements(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	date, err := req.Fixtures[0].CalendarDate()
	if err != nil {
		return nil, err
	}

	logo := req.Branding.LogoURL
	if logo == "" {
		logo = defaults.LogoURL
	}
	address := req.Branding.Address
	if address == "" {
		address = defaults.Address
	}

	scene := &Scene{Mode: req.EffectiveMode(), MatchCount: n, Background: req.Background}
	for _, e := range elems {
		item := Item{ID: e.ID, Kind: e.Kind, Box: e.Box, Alpha: 1}
		f := req.Fixtures[0]
		if e.Row >= 0 {
			f = req.Fixtures[e.Row]
		}

		switch e.Base {
		case layout.Date:
			item.Text = FrenchLongDate(date)
		case layout.HeaderDate:
			item.Text = ProgramDate(date)
		case layout.Time:
			item.Text = f.Time
			if e.Row < 0 {
				item.Alpha = 0.9
			}
		case layout.Versus:
			item.Text = "VS"
		case layout.HomeName:
			item.Text = strings.ToUpper(f.HomeTeam.Name)
		case layout.AwayName:
			item.Text = strings.ToUpper(f.AwayTeam.Name)
		case layout.Venue:
			item.Text = strings.ToUpper(f.Venue)
		case layout.HomeMark:
			item.Image, item.Placeholder = model.ImageRef{URL: f.HomeTeam.LogoURL}, true
		case layout.AwayMark:
			item.Image, item.Placeholder = model.ImageRef{URL: f.AwayTeam.LogoURL}, true
		case layout.Divider:
			item.Alpha = 0.35
		case layout.FooterMark:
			item.Image = model.ImageRef{URL: logo}
		case layout.FooterAddress:
			item.Text = strings.ToUpper(address)
			item.Alpha = 0.9
		case layout.FooterQR:
			item.Payload = req.Branding.Link
		}

		if skip(item) {
			continue
		}
		scene.Items = append(scene.Items, item)
	}
	return scene, nil
}

// skip 没有内容的可选项不进入清单；队徽即使缺失也保留，由渲染器画占位
func skip(it Item) bool {
	switch it.Kind {
	case layout.KindText:
		return strings.TrimSpace(it.Text) == ""
	case layout.KindQR:
		return it.Payload == ""
	case layout.KindMark:
		return !it.Placeholder && it.Image.IsZero()
	}
	return false
}

// Dividers 清单中的分隔线数量
func (s *Scene) Dividers() int {
	n := 0
	for _, it := range s.Items {
		if it.Kind == layout.KindLine {
			n++
		}
	}
	return n
}

// Find 按 id 查找绘制项
func (s *Scene) Find(id layout.ElementID) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
