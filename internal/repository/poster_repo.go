package repository

import (
	"context"
	"errors"
	"fmt"

	"MatchPoster/internal/interfaces"
	"MatchPoster/internal/model"

	"gorm.io/gorm"
)

// PosterRepository postgres 元数据存储
type PosterRepository struct {
	db *gorm.DB
}

func NewPosterRepository(db *gorm.DB) interfaces.PosterRepository {
	return &PosterRepository{db: db}
}

func (r *PosterRepository) Create(ctx context.Context, rec *model.PosterRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("保存海报记录失败: %w, id: %s", err, rec.ID)
	}
	return nil
}

func (r *PosterRepository) GetByID(ctx context.Context, id string) (*model.PosterRecord, error) {
	var rec model.PosterRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrPosterNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("查询海报记录失败: %w", err)
	}
	return &rec, nil
}

// ListActiveByOwner 走 idx_owner_match_date
func (r *PosterRepository) ListActiveByOwner(ctx context.Context, ownerID, since string) ([]*model.PosterRecord, error) {
	var list []*model.PosterRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND match_date >= ?", ownerID, since).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("查询海报列表失败: %w", err)
	}
	return list, nil
}

func (r *PosterRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.PosterRecord, error) {
	var list []*model.PosterRecord
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询海报列表失败: %w", err)
	}
	return list, nil
}

func (r *PosterRepository) ListExpired(ctx context.Context, before string, limit int) ([]*model.PosterRecord, error) {
	var list []*model.PosterRecord
	err := r.db.WithContext(ctx).
		Where("match_date < ?", before).
		Order("match_date ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("查询过期海报失败: %w", err)
	}
	return list, nil
}

func (r *PosterRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.PosterRecord{})
	if res.Error != nil {
		return fmt.Errorf("删除海报记录失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", model.ErrPosterNotFound, id)
	}
	return nil
}
