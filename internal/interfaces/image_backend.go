package interfaces

import (
	"context"

	"MatchPoster/internal/config"
	"MatchPoster/internal/model"

	"github.com/sirupsen/logrus"
)

// ImageBackend 所有生成服务必须实现的核心接口。
// 返回错误需归类为 model.ErrRateLimited / model.ErrContentRejected（通过 *model.UpstreamError），其余原样返回
type ImageBackend interface {
	GetType() model.ProviderType
	Generate(ctx context.Context, req model.BackendRequest) (*model.GeneratedImage, error)
}

// Factory 生成服务工厂函数签名
// 入参：生成服务配置、日志实例
// 出参：实现 ImageBackend 接口的实例
type Factory func(cfg *config.GeneratorConfig, logger *logrus.Logger) (ImageBackend, error)
