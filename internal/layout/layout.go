// Package layout 描述海报上每个元素的位置，全部以画布宽高的比例表示。
// 预览渲染与最终导出共用同一份数据，不读写任何图片字节。
package layout

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Aspect 画布宽高比（9:16）。标志按正方形像素计算宽度时用到
const Aspect = 9.0 / 16.0

var (
	ErrUnknownElement = errors.New("unknown layout element")
	ErrInvalidCount   = errors.New("match count must be at least 1")
)

// ElementID 元素标识。节目单行内元素形如 row2/home_name
type ElementID string

const (
	Date          ElementID = "date"
	Time          ElementID = "time"
	HomeMark      ElementID = "home_mark"
	AwayMark      ElementID = "away_mark"
	Versus        ElementID = "versus"
	HomeName      ElementID = "home_name"
	AwayName      ElementID = "away_name"
	Venue         ElementID = "venue"
	HeaderDate    ElementID = "header_date"
	Divider       ElementID = "divider"
	FooterMark    ElementID = "footer_mark"
	FooterAddress ElementID = "footer_address"
	FooterQR      ElementID = "footer_qr"
)

// RowElement 节目单第 row 行（从 0 开始）的元素 id
func RowElement(row int, base ElementID) ElementID {
	return ElementID("row" + strconv.Itoa(row) + "/" + string(base))
}

// ParseRow 拆出行号与基础 id，非行内元素返回 -1
func ParseRow(id ElementID) (int, ElementID) {
	s := string(id)
	if !strings.HasPrefix(s, "row") {
		return -1, id
	}
	idx := strings.IndexByte(s, '/')
	if idx < 0 {
		return -1, id
	}
	row, err := strconv.Atoi(s[3:idx])
	if err != nil {
		return -1, id
	}
	return row, ElementID(s[idx+1:])
}

// Kind 元素类别，决定渲染方式
type Kind int

const (
	KindText Kind = iota
	KindMark      // 队徽 / 品牌 logo
	KindLine      // 分隔线
	KindQR        // 二维码
)

// Align 文本水平对齐
type Align int

const (
	AlignCenter Align = iota
	AlignLeft
	AlignRight
)

func (a Align) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignRight:
		return "right"
	}
	return "center"
}

// Box 元素矩形（比例坐标）。FontScale 为字号占画布高度的比例，仅文本有效
type Box struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	W         float64 `json:"w"`
	H         float64 `json:"h"`
	FontScale float64 `json:"fontScale,omitempty"`
	MaxW      float64 `json:"maxW,omitempty"` // 图片最大宽度，0 表示不限
	Align     Align   `json:"-"`
}

// Bottom 下边界
func (b Box) Bottom() float64 { return b.Y + b.H }

// Right 右边界
func (b Box) Right() float64 { return b.X + b.W }

// Overlaps 两个矩形是否有面积交叠（仅边界相接不算）
func (b Box) Overlaps(o Box) bool {
	const eps = 1e-9
	return b.X < o.Right()-eps && o.X < b.Right()-eps &&
		b.Y < o.Bottom()-eps && o.Y < b.Bottom()-eps
}

// Element 一个待绘制元素
type Element struct {
	ID   ElementID
	Base ElementID // 去掉行前缀后的 id
	Row  int       // 节目单行号，非行内元素为 -1
	Kind Kind
	Box  Box
}

// ========== 单场（classic）锚点 ==========

const (
	dateTop    = 0.08
	timeTop    = 0.12
	marksTop   = 0.35
	marksH     = 0.20
	versusMid  = 0.45
	namesTop   = 0.58
	footerTop  = 0.90
	footerH    = 0.05
	addressEnd = 0.975 // 距底部 2.5%
	addressH   = 0.018
)

// 字号：按 1920 高度下的像素值换算
const (
	fontDate    = 49.0 / 1920
	fontTime    = 42.0 / 1920
	fontVersus  = 36.0 / 1920
	fontName    = 42.0 / 1920
	fontAddress = 26.0 / 1920
	markMaxW    = 400.0 / 1080
	footerMaxW  = 140.0 / 1080
)

func classic() []Element {
	return []Element{
		el(Date, KindText, Box{X: 0.05, Y: dateTop, W: 0.90, H: 0.035, FontScale: fontDate}),
		el(Time, KindText, Box{X: 0.30, Y: timeTop, W: 0.40, H: 0.03, FontScale: fontTime}),
		el(HomeMark, KindMark, Box{X: 0.04, Y: marksTop, W: 0.42, H: marksH, MaxW: markMaxW}),
		el(AwayMark, KindMark, Box{X: 0.54, Y: marksTop, W: 0.42, H: marksH, MaxW: markMaxW}),
		el(Versus, KindText, Box{X: 0.47, Y: versusMid - 0.0125, W: 0.06, H: 0.025, FontScale: fontVersus}),
		el(HomeName, KindText, Box{X: 0.025, Y: namesTop, W: 0.45, H: 0.04, FontScale: fontName}),
		el(AwayName, KindText, Box{X: 0.525, Y: namesTop, W: 0.45, H: 0.04, FontScale: fontName}),
		el(Venue, KindText, Box{X: 0.10, Y: 0.635, W: 0.80, H: 0.025, FontScale: fontAddress}),
	}
}

// ========== 节目单（program）表格 ==========

// bucket 每种场次数对应的行高、队徽高度、字号（均为画布高度比例）
type bucket struct {
	row  float64
	mark float64
	font float64
}

var programBuckets = map[int]bucket{
	2: {row: 0.30, mark: 0.10, font: 0.024},
	3: {row: 0.22, mark: 0.08, font: 0.020},
	4: {row: 0.17, mark: 0.065, font: 0.017},
}

const (
	smallestBucket = 4
	headerTop      = 0.07
	headerH        = 0.05
	fontHeader     = 0.03
	rowsTop        = 0.16
	rowsBottom     = 0.88 // 行区域下沿，留给页脚
	rowMarginX     = 0.04
	timeX          = 0.45
	timeW          = 0.10
	nameGap        = 0.015
	dividerH       = 0.002
)

func bucketFor(n int) bucket {
	if b, ok := programBuckets[n]; ok {
		return b
	}
	return programBuckets[smallestBucket]
}

// RowPitch 第 n 场节目单的行距：表内行高，且保证所有行在页脚之上结束
func RowPitch(n int) float64 {
	return math.Min(bucketFor(n).row, (rowsBottom-rowsTop)/float64(n))
}

func program(n int) []Element {
	b := bucketFor(n)
	pitch := RowPitch(n)
	markH := math.Min(b.mark, pitch*0.8)
	markW := markH / Aspect
	textH := math.Min(b.font*1.5, pitch*0.8)

	out := []Element{
		el(HeaderDate, KindText, Box{X: 0.05, Y: headerTop, W: 0.90, H: headerH, FontScale: fontHeader}),
	}
	for i := 0; i < n; i++ {
		top := rowsTop + float64(i)*pitch
		markY := top + (pitch-markH)/2
		textY := top + (pitch-textH)/2
		homeNameX := rowMarginX + markW + nameGap
		awayMarkX := 1 - rowMarginX - markW
		awayNameX := timeX + timeW + nameGap

		out = append(out,
			rowEl(i, HomeMark, KindMark, Box{X: rowMarginX, Y: markY, W: markW, H: markH}),
			rowEl(i, HomeName, KindText, Box{X: homeNameX, Y: textY, W: timeX - nameGap - homeNameX, H: textH, FontScale: b.font, Align: AlignRight}),
			rowEl(i, Time, KindText, Box{X: timeX, Y: textY, W: timeW, H: textH, FontScale: b.font}),
			rowEl(i, AwayName, KindText, Box{X: awayNameX, Y: textY, W: awayMarkX - nameGap - awayNameX, H: textH, FontScale: b.font, Align: AlignLeft}),
			rowEl(i, AwayMark, KindMark, Box{X: awayMarkX, Y: markY, W: markW, H: markH}),
		)
		// 最后一行之后不画分隔线
		if i < n-1 {
			lineY := top + pitch - dividerH/2
			out = append(out, rowEl(i, Divider, KindLine, Box{X: rowMarginX, Y: lineY, W: 1 - 2*rowMarginX, H: dividerH}))
		}
	}
	return out
}

// footer 与场次数无关，总是最后绘制
func footer() []Element {
	return []Element{
		el(FooterMark, KindMark, Box{X: 0.5 - footerMaxW/2, Y: footerTop, W: footerMaxW, H: footerH}),
		el(FooterAddress, KindText, Box{X: 0.05, Y: addressEnd - addressH, W: 0.90, H: addressH, FontScale: fontAddress}),
		el(FooterQR, KindQR, Box{X: 0.96 - 0.07/Aspect, Y: 0.88, W: 0.07 / Aspect, H: 0.07}),
	}
}

// Elements 按绘制顺序返回 matchCount 场次下的全部元素
func Elements(matchCount int) ([]Element, error) {
	if matchCount < 1 {
		return nil, ErrInvalidCount
	}
	var body []Element
	if matchCount == 1 {
		body = classic()
	} else {
		body = program(matchCount)
	}
	return append(body, footer()...), nil
}

// Resolve 查询单个元素的位置
func Resolve(id ElementID, matchCount int) (Box, error) {
	elems, err := Elements(matchCount)
	if err != nil {
		return Box{}, err
	}
	for _, e := range elems {
		if e.ID == id {
			return e.Box, nil
		}
	}
	return Box{}, fmt.Errorf("%w: %s (matchCount=%d)", ErrUnknownElement, id, matchCount)
}

func el(id ElementID, kind Kind, box Box) Element {
	return Element{ID: id, Base: id, Row: -1, Kind: kind, Box: box}
}

func rowEl(row int, base ElementID, kind Kind, box Box) Element {
	return Element{ID: RowElement(row, base), Base: base, Row: row, Kind: kind, Box: box}
}
