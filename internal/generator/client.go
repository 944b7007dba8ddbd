package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MatchPoster/internal/auth"
	"MatchPoster/internal/config"
	"MatchPoster/internal/interfaces"
	"MatchPoster/internal/model"
	"MatchPoster/internal/throttle"
	"MatchPoster/internal/utils/clock"

	"github.com/sirupsen/logrus"
)

// Request 一次背景生成请求
type Request struct {
	TeamA       string
	TeamB       string
	Date        string
	Time        string
	Venue       string
	Competition string
	MatchCount  int // >0 表示节目单背景
}

// Client 背景生成客户端：节流、限流重试、错误归类
type Client struct {
	backend    interfaces.ImageBackend
	throttle   *throttle.Throttle
	clk        clock.Clock
	maxRetries int
	base       time.Duration
	cap        time.Duration
	logger     *logrus.Logger
}

// NewClient 创建生成客户端。throttle 为进程级共享实例
func NewClient(backend interfaces.ImageBackend, th *throttle.Throttle, clk clock.Clock, cfg *config.GeneratorConfig, logger *logrus.Logger) *Client {
	if clk == nil {
		clk = clock.Real()
	}
	c := &Client{
		backend:    backend,
		throttle:   th,
		clk:        clk,
		maxRetries: cfg.MaxRetries,
		base:       cfg.BackoffBase,
		cap:        cfg.BackoffCap,
		logger:     logger,
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.base <= 0 {
		c.base = 5 * time.Second
	}
	if c.cap <= 0 {
		c.cap = 60 * time.Second
	}
	return c
}

// Backoff 第 n 次重试（从 1 开始）的退避时长：min(base·2^(n-1), cap)
func (c *Client) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := c.base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= c.cap {
			return c.cap
		}
	}
	if d > c.cap {
		return c.cap
	}
	return d
}

// Generate 生成背景图。
// 仅限流错误会重试；内容拦截立即返回；其余错误原样返回
func (c *Client) Generate(ctx context.Context, req Request, style model.RenderStyle) (*model.GeneratedImage, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, model.ErrNoOwner
	}

	breq := c.buildRequest(req, style)
	breq.Token = id.Token
	provider := c.backend.GetType()
	log := c.logger.WithFields(logrus.Fields{
		"provider": provider,
		"template": breq.TemplateID,
		"owner":    id.OwnerID,
	})

	for attempt := 0; ; attempt++ {
		if err := c.throttle.Wait(ctx); err != nil {
			return nil, err
		}

		img, err := c.backend.Generate(ctx, breq)
		if err == nil {
			requestsTotal.WithLabelValues(provider, "success").Inc()
			log.WithField("attempts", attempt+1).Info("背景生成成功")
			return img, nil
		}

		switch {
		case errors.Is(err, model.ErrContentRejected):
			requestsTotal.WithLabelValues(provider, "content_rejected").Inc()
			log.WithError(err).Warn("背景生成被内容安全拦截")
			return nil, err
		case !errors.Is(err, model.ErrRateLimited):
			requestsTotal.WithLabelValues(provider, "error").Inc()
			log.WithError(err).Error("背景生成失败")
			return nil, err
		}

		requestsTotal.WithLabelValues(provider, "rate_limited").Inc()
		if attempt >= c.maxRetries {
			log.WithField("attempts", attempt+1).Warn("限流重试次数已用尽")
			return nil, fmt.Errorf("重试 %d 次后仍被限流: %w", c.maxRetries, err)
		}

		delay, source := c.Backoff(attempt+1), "backoff"
		if hint, ok := model.RetryHint(err); ok {
			// 上游提示同样受退避上限约束
			delay, source = min(hint, c.cap), "hint"
		}
		retriesTotal.WithLabelValues(provider, source).Inc()
		log.WithFields(logrus.Fields{
			"retry": attempt + 1,
			"delay": delay,
		}).Info("被限流，等待后重试")
		if err := c.clk.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) buildRequest(req Request, style model.RenderStyle) model.BackendRequest {
	if req.MatchCount > 0 {
		style = model.StyleProgram
	}
	tpl := TemplateFor(style)
	return model.BackendRequest{
		TemplateID:  tpl.ID,
		Prompt:      tpl.Render(req),
		HomeTeam:    req.TeamA,
		AwayTeam:    req.TeamB,
		Date:        req.Date,
		Time:        req.Time,
		Venue:       req.Venue,
		Competition: req.Competition,
		Style:       style,
		MatchCount:  req.MatchCount,
		AspectRatio: model.PortraitAspect,
	}
}
