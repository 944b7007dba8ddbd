package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MatchPoster/internal/auth"
	"MatchPoster/internal/compose"
	"MatchPoster/internal/config"
	"MatchPoster/internal/generator"
	"MatchPoster/internal/model"

	"github.com/sirupsen/logrus"
)

// BackgroundGenerator 背景生成（generator.Client 实现）
type BackgroundGenerator interface {
	Generate(ctx context.Context, req generator.Request, style model.RenderStyle) (*model.GeneratedImage, error)
}

// PosterService 合成编排：分组 → 解析背景 → 合成 → 入库
type PosterService struct {
	engine    *compose.Engine
	gallery   *GalleryService
	generator BackgroundGenerator
	planner   Planner
	cfg       config.ComposerConfig
	logger    *logrus.Logger
}

// NewPosterService 创建合成服务。generator 为 nil 时不支持 AI 背景
func NewPosterService(
	engine *compose.Engine,
	gallery *GalleryService,
	gen BackgroundGenerator,
	planner Planner,
	cfg config.ComposerConfig,
	logger *logrus.Logger,
) *PosterService {
	return &PosterService{
		engine:    engine,
		gallery:   gallery,
		generator: gen,
		planner:   planner,
		cfg:       cfg,
		logger:    logger,
	}
}

// Create 按请求生成一张或多张海报并保存，返回保存后的记录
func (s *PosterService) Create(ctx context.Context, req model.CompositionRequest) ([]*model.PosterRecord, error) {
	if _, err := auth.RequireOwner(ctx); err != nil {
		return nil, err
	}
	if err := validateFixtures(req); err != nil {
		return nil, err
	}

	groups := s.planner.Plan(req.Fixtures, req.Mode)
	records := make([]*model.PosterRecord, 0, len(groups))
	for i, g := range groups {
		sub := req
		sub.Fixtures = g.Fixtures
		sub.Mode = g.Mode
		rec, err := s.createOne(ctx, sub)
		if err != nil {
			return records, fmt.Errorf("第 %d/%d 张海报生成失败: %w", i+1, len(groups), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *PosterService) createOne(ctx context.Context, req model.CompositionRequest) (*model.PosterRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	style := effectiveStyle(req)

	bg, err := s.resolveBackground(ctx, req, style)
	if err != nil {
		return nil, err
	}
	req.Background = bg

	res, err := s.engine.Compose(ctx, req)
	if err != nil {
		return nil, err
	}
	snapshot, err := model.SnapshotFixtures(req.Fixtures)
	if err != nil {
		return nil, err
	}

	rec := &model.PosterRecord{
		Mode:            req.EffectiveMode(),
		Style:           style,
		MatchDate:       req.MatchDate(),
		FixtureSnapshot: snapshot,
		PosterMimeType:  res.MimeType,
		FileName:        res.FileName,
		Background:      bg,
		Poster:          model.ImageRef{Data: res.Data, MimeType: res.MimeType},
	}
	if _, err := s.gallery.Save(ctx, rec); err != nil {
		return nil, err
	}
	composeDuration.WithLabelValues(string(rec.Mode)).Observe(time.Since(start).Seconds())
	return rec, nil
}

// resolveBackground 背景优先级：调用方提供 → AI 生成（需显式开启）→ 默认库存背景
func (s *PosterService) resolveBackground(ctx context.Context, req model.CompositionRequest, style model.RenderStyle) (model.ImageRef, error) {
	if !req.Background.IsZero() {
		return req.Background, nil
	}
	if !req.Generate {
		return model.ImageRef{URL: s.cfg.DefaultBackground}, nil
	}
	if s.generator == nil {
		return model.ImageRef{}, model.ErrBackendNotConfigured
	}

	first := req.Fixtures[0]
	greq := generator.Request{
		TeamA:       first.HomeTeam.Name,
		TeamB:       first.AwayTeam.Name,
		Date:        first.Date,
		Time:        first.Time,
		Venue:       first.Venue,
		Competition: first.Competition,
	}
	if req.EffectiveMode() == model.ModeProgram {
		greq.MatchCount = len(req.Fixtures)
	}
	img, err := s.generator.Generate(ctx, greq, style)
	if err != nil {
		return model.ImageRef{}, err
	}
	return model.ImageRef{Data: img.Data, MimeType: img.MimeType}, nil
}

// Preview 生成预览文档，不调用生成服务也不入库
func (s *PosterService) Preview(ctx context.Context, req model.CompositionRequest, withImage bool) (*compose.PreviewDocument, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.EffectiveMode() == model.ModeProgram && len(req.Fixtures) > s.planner.hi {
		return nil, fmt.Errorf("%w: 节目单最多 %d 场", model.ErrInvalidRequest, s.planner.hi)
	}
	if req.Background.IsZero() {
		req.Background = model.ImageRef{URL: s.cfg.DefaultBackground}
	}
	return s.engine.Preview(ctx, req, withImage)
}

func validateFixtures(req model.CompositionRequest) error {
	if len(req.Fixtures) == 0 {
		return fmt.Errorf("%w: 至少需要一场赛事", model.ErrInvalidRequest)
	}
	if req.Style != "" && !req.Style.Valid() {
		return fmt.Errorf("%w: 未知风格 %q", model.ErrInvalidRequest, req.Style)
	}
	var errs []error
	for _, f := range req.Fixtures {
		if err := f.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func effectiveStyle(req model.CompositionRequest) model.RenderStyle {
	if req.EffectiveMode() == model.ModeProgram {
		return model.StyleProgram
	}
	if req.Style == "" || req.Style == model.StyleProgram {
		return model.StyleStadium
	}
	return req.Style
}
