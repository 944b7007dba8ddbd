package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// PosterRecord 已合成海报的元数据。大图只保存引用，字节在 blob 存储中
type PosterRecord struct {
	ID                string         `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	OwnerID           string         `gorm:"column:owner_id;type:varchar(128);not null;index:idx_owner_match_date,priority:1" json:"ownerId"`
	Mode              PosterMode     `gorm:"column:mode;type:varchar(16);not null" json:"mode"`
	Style             RenderStyle    `gorm:"column:style;type:varchar(32);not null" json:"style"`
	MatchDate         string         `gorm:"column:match_date;type:varchar(10);not null;index:idx_owner_match_date,priority:2;index" json:"matchDate"` // YYYY-MM-DD，用于保留策略
	FixtureSnapshot   datatypes.JSON `gorm:"column:fixture_snapshot;type:json;not null" json:"fixtures"` // json 而非 jsonb，原样保存字节
	BackgroundURL     string         `gorm:"column:background_url;type:text" json:"backgroundUrl,omitempty"`        // 外部库存背景地址
	BackgroundBlobKey string         `gorm:"column:background_blob_key;type:varchar(255)" json:"-"`                  // 自有 blob
	PosterBlobKey     string         `gorm:"column:poster_blob_key;type:varchar(255)" json:"-"`                      // 最终成图
	PosterMimeType    string         `gorm:"column:poster_mime_type;type:varchar(32)" json:"posterMimeType"`         // 成图格式
	FileName          string         `gorm:"column:file_name;type:varchar(255)" json:"fileName"`                     // 下载文件名
	CreatedAt         time.Time      `gorm:"column:created_at;type:timestamp;not null;index" json:"createdAt"`       // 创建时间

	// 仅 save 时使用：内联字节会被上传并替换为 blob key
	Background ImageRef `gorm:"-" json:"-"`
	Poster     ImageRef `gorm:"-" json:"-"`
}

func (PosterRecord) TableName() string { return "poster_records" }

// SnapshotFixtures 序列化赛事快照
func SnapshotFixtures(fixtures []Fixture) (datatypes.JSON, error) {
	b, err := json.Marshal(fixtures)
	if err != nil {
		return nil, fmt.Errorf("序列化赛事快照失败: %w", err)
	}
	return b, nil
}

// Fixtures 反序列化赛事快照
func (p *PosterRecord) Fixtures() ([]Fixture, error) {
	var out []Fixture
	if len(p.FixtureSnapshot) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(p.FixtureSnapshot, &out); err != nil {
		return nil, fmt.Errorf("解析赛事快照失败: %w", err)
	}
	return out, nil
}

// BlobKeys 记录持有的所有 blob key
func (p *PosterRecord) BlobKeys() []string {
	var keys []string
	if p.PosterBlobKey != "" {
		keys = append(keys, p.PosterBlobKey)
	}
	if p.BackgroundBlobKey != "" {
		keys = append(keys, p.BackgroundBlobKey)
	}
	return keys
}
