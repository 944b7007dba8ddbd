package model

import (
	"fmt"
	"time"
)

// FixtureDateLayout 赛事日期格式（日历日期，不做时区换算）
const FixtureDateLayout = "2006-01-02"

// Team 参赛方
type Team struct {
	Name    string `json:"name"`              // 展示名称
	LogoURL string `json:"logoUrl,omitempty"` // 队徽地址
}

// Fixture 单场赛事，选定后不可修改
type Fixture struct {
	ID          string `json:"id"`
	Competition string `json:"competition"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:mm，本地展示时间
	HomeTeam    Team   `json:"homeTeam"`
	AwayTeam    Team   `json:"awayTeam"`
	Venue       string `json:"venue,omitempty"`
}

// CalendarDate 解析赛事日期。按 UTC 零点解析，仅用于取年月日，不做任何时区换算
func (f Fixture) CalendarDate() (time.Time, error) {
	d, err := time.Parse(FixtureDateLayout, f.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: 赛事 %s 日期格式错误 %q", ErrInvalidRequest, f.ID, f.Date)
	}
	return d, nil
}

// Validate 校验合成所需的最少字段
func (f Fixture) Validate() error {
	if f.HomeTeam.Name == "" || f.AwayTeam.Name == "" {
		return fmt.Errorf("%w: 赛事 %s 缺少主客队名称", ErrInvalidRequest, f.ID)
	}
	_, err := f.CalendarDate()
	return err
}
