package interfaces

import (
	"context"

	"MatchPoster/internal/model"
)

// PosterRepository 海报元数据存储（postgres / firestore 各一份实现）
type PosterRepository interface {
	Create(ctx context.Context, rec *model.PosterRecord) error
	// GetByID 不存在时返回 model.ErrPosterNotFound
	GetByID(ctx context.Context, id string) (*model.PosterRecord, error)
	// ListActiveByOwner match_date >= since，按创建时间倒序。
	// 存储无法执行该查询时返回 model.ErrQueryUnsupported
	ListActiveByOwner(ctx context.Context, ownerID, since string) ([]*model.PosterRecord, error)
	// ListByOwner 该用户全部记录，不保证顺序
	ListByOwner(ctx context.Context, ownerID string) ([]*model.PosterRecord, error)
	// ListExpired 跨用户取 match_date < before 的记录，最多 limit 条
	ListExpired(ctx context.Context, before string, limit int) ([]*model.PosterRecord, error)
	// Delete 不存在时返回 model.ErrPosterNotFound
	Delete(ctx context.Context, id string) error
}

// BlobStore 按 key 寻址的二进制存储
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get 不存在时返回 model.ErrBlobNotFound
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Delete 不存在时返回 model.ErrBlobNotFound
	Delete(ctx context.Context, key string) error
}
