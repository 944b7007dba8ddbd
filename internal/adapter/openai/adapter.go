package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"MatchPoster/internal/adapter"
	"MatchPoster/internal/config"
	"MatchPoster/internal/interfaces"
	"MatchPoster/internal/model"
	"MatchPoster/internal/utils/httpclient"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

func init() {
	adapter.Register(model.ProviderOpenAI, NewOpenAIAdapter)
}

// imageCreator go-openai Client 中用到的部分
type imageCreator interface {
	CreateImage(ctx context.Context, request goopenai.ImageRequest) (goopenai.ImageResponse, error)
}

type Adapter struct {
	client imageCreator
	model  string
	logger *logrus.Logger
}

// NewOpenAIAdapter 通过 OpenAI 图片接口生成背景（竖版 1024x1792）
func NewOpenAIAdapter(cfg *config.GeneratorConfig, logger *logrus.Logger) (interfaces.ImageBackend, error) {
	if err := adapter.RequireAPIKey(cfg); err != nil {
		return nil, err
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" && !strings.Contains(cfg.BaseURL, "googleapis.com") {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = httpclient.NewHTTPClient(httpclient.Options{
		Proxy:   cfg.Proxy,
		Timeout: time.Duration(cfg.Timeout) * time.Second,
	}, logger)

	imageModel := cfg.Model
	if imageModel == "" || strings.HasPrefix(imageModel, "gemini") {
		imageModel = goopenai.CreateImageModelDallE3
	}
	return &Adapter{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  imageModel,
		logger: logger,
	}, nil
}

func (a *Adapter) GetType() model.ProviderType { return model.ProviderOpenAI }

func (a *Adapter) Generate(ctx context.Context, req model.BackendRequest) (*model.GeneratedImage, error) {
	resp, err := a.client.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          a.model,
		N:              1,
		Size:           goopenai.CreateImageSize1024x1792,
		ResponseFormat: goopenai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, &model.UpstreamError{Message: "no image generated"}
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("解码OpenAI图片失败: %w", err)
	}
	return &model.GeneratedImage{Data: data, MimeType: http.DetectContentType(data)}, nil
}

// classifyError 429 → 限流；content_policy_violation → 内容拒绝
func classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		ue := &model.UpstreamError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		code := fmt.Sprint(apiErr.Code)
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			ue.Kind = model.ErrRateLimited
		case code == "content_policy_violation" || strings.Contains(apiErr.Message, "safety system"):
			ue.Kind = model.ErrContentRejected
		}
		return ue
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		ue := &model.UpstreamError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			ue.Kind = model.ErrRateLimited
		}
		return ue
	}
	return fmt.Errorf("请求OpenAI失败: %w", err)
}
