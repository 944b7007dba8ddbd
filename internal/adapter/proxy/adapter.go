package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"MatchPoster/internal/adapter"
	"MatchPoster/internal/config"
	"MatchPoster/internal/interfaces"
	"MatchPoster/internal/model"
	"MatchPoster/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

func init() {
	adapter.Register(model.ProviderProxy, NewProxyAdapter)
}

const (
	MatchBackgroundPath   = "/api/gemini/generate-match-background"
	ProgramBackgroundPath = "/api/gemini/generate-program-background"

	CodeRateLimited     = "rate_limited"
	CodeContentRejected = "content_rejected"
)

// MatchBody 单场背景请求体
type MatchBody struct {
	HomeTeam    string            `json:"homeTeam"`
	AwayTeam    string            `json:"awayTeam"`
	Style       model.RenderStyle `json:"style,omitempty"`
	Date        string            `json:"date,omitempty"`
	Time        string            `json:"time,omitempty"`
	Venue       string            `json:"venue,omitempty"`
	Competition string            `json:"competition,omitempty"`
}

// ProgramBody 节目单背景请求体
type ProgramBody struct {
	MatchCount int `json:"matchCount"`
}

// Result 后端统一响应
type Result struct {
	Success           bool   `json:"success"`
	Image             string `json:"image,omitempty"` // data URL
	Error             string `json:"error,omitempty"`
	Code              string `json:"code,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

type Adapter struct {
	cfg        *config.GeneratorConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewProxyAdapter 经后端转发的生成服务，调用方令牌由后端校验
func NewProxyAdapter(cfg *config.GeneratorConfig, logger *logrus.Logger) (interfaces.ImageBackend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: proxy base_url", model.ErrBackendNotConfigured)
	}
	return &Adapter{
		cfg: cfg,
		httpClient: httpclient.NewHTTPClient(httpclient.Options{
			Proxy:   cfg.Proxy,
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}, logger),
		logger: logger,
	}, nil
}

func (a *Adapter) GetType() model.ProviderType { return model.ProviderProxy }

func (a *Adapter) Generate(ctx context.Context, req model.BackendRequest) (*model.GeneratedImage, error) {
	path := MatchBackgroundPath
	var body any = MatchBody{
		HomeTeam:    req.HomeTeam,
		AwayTeam:    req.AwayTeam,
		Style:       req.Style,
		Date:        req.Date,
		Time:        req.Time,
		Venue:       req.Venue,
		Competition: req.Competition,
	}
	if req.IsProgram() {
		path = ProgramBackgroundPath
		body = ProgramBody{MatchCount: req.MatchCount}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化代理请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建代理请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	token := req.Token
	if token == "" {
		token = a.cfg.ProxyToken
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求生成代理失败: %w", err)
	}
	defer resp.Body.Close()

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &model.UpstreamError{StatusCode: resp.StatusCode, Message: "invalid proxy response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return nil, classify(resp, &out)
	}

	ref, err := model.ParseImageRef(out.Image)
	if err != nil || !ref.IsInline() {
		return nil, &model.UpstreamError{StatusCode: resp.StatusCode, Message: "proxy returned no inline image"}
	}
	return &model.GeneratedImage{Data: ref.Data, MimeType: ref.MimeType}, nil
}

func classify(resp *http.Response, out *Result) error {
	ue := &model.UpstreamError{StatusCode: resp.StatusCode, Message: out.Error}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || out.Code == CodeRateLimited:
		ue.Kind = model.ErrRateLimited
		if out.RetryAfterSeconds > 0 {
			ue.RetryAfter = time.Duration(out.RetryAfterSeconds) * time.Second
		} else if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			ue.RetryAfter = time.Duration(secs) * time.Second
		}
	case resp.StatusCode == http.StatusUnprocessableEntity || out.Code == CodeContentRejected:
		ue.Kind = model.ErrContentRejected
	}
	return ue
}
