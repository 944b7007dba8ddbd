package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
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
	adapter.Register(model.ProviderGemini, NewGeminiAdapter)
}

const maxResponseBytes = 32 << 20

// 内容安全相关的结束原因
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"IMAGE_SAFETY":       true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
}

var retryDelayInMessage = regexp.MustCompile(`(?i)retry_delay['":\s]+(\d+)`)

type Adapter struct {
	cfg        *config.GeneratorConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewGeminiAdapter 直连 Gemini REST 接口
func NewGeminiAdapter(cfg *config.GeneratorConfig, logger *logrus.Logger) (interfaces.ImageBackend, error) {
	if err := adapter.RequireAPIKey(cfg); err != nil {
		return nil, err
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

func (a *Adapter) GetType() model.ProviderType { return model.ProviderGemini }

// ========== 请求/响应结构 ==========

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type       string `json:"@type"`
			RetryDelay string `json:"retryDelay"`
		} `json:"details"`
	} `json:"error"`
}

// Generate 调用 models/{model}:generateContent，从 inlineData 取图
func (a *Adapter) Generate(ctx context.Context, req model.BackendRequest) (*model.GeneratedImage, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	if req.AspectRatio != "" {
		body.GenerationConfig.ImageConfig = &imageConfig{AspectRatio: req.AspectRatio}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化Gemini请求失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(a.cfg.BaseURL, "/"), a.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建Gemini请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.cfg.APIKey)

	a.logger.WithFields(logrus.Fields{
		"model":    a.cfg.Model,
		"template": req.TemplateID,
	}).Debug("请求Gemini生成背景")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求Gemini失败: %w", err)
	}
	defer resp.Body.Close()

	raw, err := httpclient.ReadLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("读取Gemini响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyError(resp, raw)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("解析Gemini响应失败: %w", err)
	}
	return extractImage(&out)
}

// extractImage 取第一张 inlineData 图片；被拦截或只返回文字均视为内容拒绝
func extractImage(out *generateResponse) (*model.GeneratedImage, error) {
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return nil, &model.UpstreamError{Kind: model.ErrContentRejected, Message: "prompt blocked: " + out.PromptFeedback.BlockReason}
	}
	var refusal string
	for _, cand := range out.Candidates {
		if blockedFinishReasons[cand.FinishReason] {
			return nil, &model.UpstreamError{Kind: model.ErrContentRejected, Message: "finish reason " + cand.FinishReason}
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("解码Gemini图片失败: %w", err)
				}
				mimeType := p.InlineData.MimeType
				if mimeType == "" {
					mimeType = http.DetectContentType(data)
				}
				return &model.GeneratedImage{Data: data, MimeType: mimeType}, nil
			}
			if p.Text != "" && refusal == "" {
				refusal = p.Text
			}
		}
	}
	if refusal != "" {
		return nil, &model.UpstreamError{Kind: model.ErrContentRejected, Message: truncate(refusal, 200)}
	}
	return nil, &model.UpstreamError{Message: "no image generated"}
}

// classifyError 把非 200 响应归类为限流 / 内容拒绝 / 其他
func classifyError(resp *http.Response, raw []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)

	ue := &model.UpstreamError{StatusCode: resp.StatusCode, Message: env.Error.Message}
	if ue.Message == "" {
		ue.Message = truncate(string(raw), 200)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || env.Error.Status == "RESOURCE_EXHAUSTED":
		ue.Kind = model.ErrRateLimited
		ue.RetryAfter = retryAfter(resp, &env)
	case strings.Contains(ue.Message, "SAFETY"):
		ue.Kind = model.ErrContentRejected
	}
	return ue
}

// retryAfter 优先 RetryInfo.retryDelay，其次消息中的 retry_delay，最后 Retry-After 头
func retryAfter(resp *http.Response, env *errorEnvelope) time.Duration {
	for _, d := range env.Error.Details {
		if d.RetryDelay == "" {
			continue
		}
		if delay, err := time.ParseDuration(d.RetryDelay); err == nil && delay > 0 {
			return delay
		}
	}
	if m := retryDelayInMessage.FindStringSubmatch(env.Error.Message); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
