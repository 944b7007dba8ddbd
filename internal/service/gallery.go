package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"MatchPoster/internal/auth"
	"MatchPoster/internal/interfaces"
	"MatchPoster/internal/model"
	"MatchPoster/internal/storage"
	"MatchPoster/internal/utils/clock"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Asset 下载用的图片内容；RedirectURL 非空时调用方应重定向到外部地址
type Asset struct {
	Data        []byte
	MimeType    string
	FileName    string
	RedirectURL string
}

// GalleryService 海报图库：元数据在 PosterRepository，大图在 BlobStore
type GalleryService struct {
	repo   interfaces.PosterRepository
	blobs  interfaces.BlobStore
	clk    clock.Clock
	logger *logrus.Logger
}

// NewGalleryService 创建图库服务
func NewGalleryService(repo interfaces.PosterRepository, blobs interfaces.BlobStore, clk clock.Clock, logger *logrus.Logger) *GalleryService {
	return &GalleryService{repo: repo, blobs: blobs, clk: clk, logger: logger}
}

// today 服务端当天日期，保留策略只认这个值
func (s *GalleryService) today() string {
	return s.clk.Now().Format(model.FixtureDateLayout)
}

// Save 保存海报。内联图片先上传 blob，记录中只保留引用
func (s *GalleryService) Save(ctx context.Context, rec *model.PosterRecord) (string, error) {
	owner, err := auth.RequireOwner(ctx)
	if err != nil {
		return "", err
	}
	if rec.OwnerID != "" && rec.OwnerID != owner {
		return "", model.ErrForbidden
	}
	rec.OwnerID = owner
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clk.Now().UTC()
	}

	var uploaded []string
	cleanup := func() {
		// 请求被取消时也要回滚
		rollbackCtx := context.WithoutCancel(ctx)
		for _, key := range uploaded {
			if err := s.blobs.Delete(rollbackCtx, key); err != nil && !errors.Is(err, model.ErrBlobNotFound) {
				s.logger.WithError(err).WithField("key", key).Warn("回滚已上传 blob 失败")
			}
		}
	}

	posterKey, posterMime, err := s.offload(ctx, owner, rec.ID, storage.AssetPoster, rec.Poster)
	if err != nil {
		return "", err
	}
	if posterKey == "" {
		return "", fmt.Errorf("%w: 海报图片必须为内联字节或 blob 引用", model.ErrInvalidRequest)
	}
	if rec.Poster.IsInline() {
		uploaded = append(uploaded, posterKey)
	}
	rec.PosterBlobKey = posterKey
	if posterMime != "" {
		rec.PosterMimeType = posterMime
	}

	switch {
	case rec.Background.IsZero():
	case rec.Background.IsInline():
		key, _, err := s.offload(ctx, owner, rec.ID, storage.AssetBackground, rec.Background)
		if err != nil {
			cleanup()
			return "", err
		}
		uploaded = append(uploaded, key)
		rec.BackgroundBlobKey = key
	default:
		if key, ok := rec.Background.BlobKey(); ok {
			rec.BackgroundBlobKey = key
		} else {
			rec.BackgroundURL = rec.Background.URL
		}
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		cleanup()
		return "", err
	}
	postersSaved.WithLabelValues(string(rec.Mode)).Inc()
	s.logger.WithFields(logrus.Fields{
		"id":         rec.ID,
		"owner":      owner,
		"match_date": rec.MatchDate,
		"mode":       rec.Mode,
	}).Info("海报已保存")
	return rec.ID, nil
}

// offload 内联字节上传到 blob，blob 引用直接取 key；外部 URL 返回空 key
func (s *GalleryService) offload(ctx context.Context, owner, id, asset string, ref model.ImageRef) (string, string, error) {
	if strings.HasPrefix(ref.URL, "data:") {
		parsed, err := model.ParseImageRef(ref.URL)
		if err != nil {
			return "", "", err
		}
		ref = parsed
	}
	if key, ok := ref.BlobKey(); ok {
		return key, ref.MimeType, nil
	}
	if !ref.IsInline() {
		return "", "", nil
	}
	mimeType := ref.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	key := storage.Key(owner, id, asset, mimeType)
	if err := s.blobs.Put(ctx, key, ref.Data, mimeType); err != nil {
		return "", "", fmt.Errorf("上传 %s 失败: %w", asset, err)
	}
	return key, mimeType, nil
}

// List 当前用户比赛日期 >= 今天的海报，按创建时间倒序。
// 存储不支持该查询（如缺少复合索引）时退化为全量扫描后在内存中过滤
func (s *GalleryService) List(ctx context.Context) ([]*model.PosterRecord, error) {
	owner, err := auth.RequireOwner(ctx)
	if err != nil {
		return nil, err
	}
	today := s.today()
	list, err := s.repo.ListActiveByOwner(ctx, owner, today)
	if err == nil {
		return list, nil
	}
	if !errors.Is(err, model.ErrQueryUnsupported) {
		return nil, err
	}

	listFallbacks.Inc()
	s.logger.WithError(err).WithField("owner", owner).Warn("索引查询不可用，退化为全量扫描")
	all, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	active := make([]*model.PosterRecord, 0, len(all))
	for _, rec := range all {
		if rec.MatchDate >= today {
			active = append(active, rec)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

// Get 读取当前用户的一条记录
func (s *GalleryService) Get(ctx context.Context, id string) (*model.PosterRecord, error) {
	owner, err := auth.RequireOwner(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != owner {
		return nil, model.ErrForbidden
	}
	return rec, nil
}

// Delete 删除海报：先校验归属，再尽力删除 blob，最后无论 blob 结果如何都删除元数据
func (s *GalleryService) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, rec)
}

func (s *GalleryService) remove(ctx context.Context, rec *model.PosterRecord) error {
	log := s.logger.WithField("id", rec.ID)
	for _, key := range rec.BlobKeys() {
		err := s.blobs.Delete(ctx, key)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrBlobNotFound):
			log.WithField("key", key).Debug("blob 已不存在")
		default:
			blobDeleteFailures.Inc()
			log.WithError(err).WithField("key", key).Warn("删除 blob 失败，继续删除元数据")
		}
	}
	if err := s.repo.Delete(ctx, rec.ID); err != nil {
		return err
	}
	log.Info("海报已删除")
	return nil
}

// Sweep 主动清理所有用户比赛日期早于今天的海报，返回删除条数
func (s *GalleryService) Sweep(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 200
	}
	today := s.today()
	removed := 0
	for {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		list, err := s.repo.ListExpired(ctx, today, batch)
		if err != nil {
			return removed, fmt.Errorf("ListExpired: %w", err)
		}
		progressed := 0
		for _, rec := range list {
			err := s.remove(ctx, rec)
			if err != nil && !errors.Is(err, model.ErrPosterNotFound) {
				s.logger.WithError(err).WithField("id", rec.ID).Warn("清理过期海报失败")
				continue
			}
			progressed++
			if err == nil {
				removed++
				postersSwept.Inc()
			}
		}
		// 整批都失败时停止，避免反复取到同一批
		if len(list) < batch || progressed == 0 {
			return removed, nil
		}
	}
}

// OpenPoster 读取成图
func (s *GalleryService) OpenPoster(ctx context.Context, id string) (*Asset, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.PosterBlobKey == "" {
		return nil, fmt.Errorf("%w: %s 无成图", model.ErrBlobNotFound, id)
	}
	data, mimeType, err := s.blobs.Get(ctx, rec.PosterBlobKey)
	if err != nil {
		return nil, err
	}
	if rec.PosterMimeType != "" {
		mimeType = rec.PosterMimeType
	}
	return &Asset{Data: data, MimeType: mimeType, FileName: rec.FileName}, nil
}

// OpenBackground 读取背景；外部库存背景返回重定向地址
func (s *GalleryService) OpenBackground(ctx context.Context, id string) (*Asset, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.BackgroundBlobKey == "" {
		if rec.BackgroundURL == "" {
			return nil, fmt.Errorf("%w: %s 无背景", model.ErrBlobNotFound, id)
		}
		return &Asset{RedirectURL: rec.BackgroundURL}, nil
	}
	data, mimeType, err := s.blobs.Get(ctx, rec.BackgroundBlobKey)
	if err != nil {
		return nil, err
	}
	return &Asset{Data: data, MimeType: mimeType}, nil
}
