package adapter

import (
	"fmt"

	"MatchPoster/internal/config"
	"MatchPoster/internal/interfaces"
	"MatchPoster/internal/model"

	"github.com/sirupsen/logrus"
)

// NewBackend 按配置中的 provider 从工厂注册表创建生成服务实例
func NewBackend(cfg *config.GeneratorConfig, logger *logrus.Logger) (interfaces.ImageBackend, error) {
	logger.WithField("factory_providers", ListFactories()).Info("已注册的生成服务工厂")

	factory, ok := GetFactory(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("生成服务%s未注册工厂函数（已注册：%v）", cfg.Provider, ListFactories())
	}
	backend, err := factory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化生成服务%s失败: %w", cfg.Provider, err)
	}
	if backend == nil {
		return nil, fmt.Errorf("生成服务%s工厂函数返回nil实例", cfg.Provider)
	}
	if backend.GetType() != cfg.Provider {
		logger.WithFields(logrus.Fields{
			"config_provider":  cfg.Provider,
			"adapter_provider": backend.GetType(),
		}).Error("生成服务类型与配置不匹配")
		return nil, fmt.Errorf("生成服务类型不匹配: %s != %s", backend.GetType(), cfg.Provider)
	}
	logger.WithField("provider", cfg.Provider).Info("生成服务初始化成功")
	return backend, nil
}

// RequireAPIKey 工厂函数共用的凭证检查
func RequireAPIKey(cfg *config.GeneratorConfig) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("%w: provider %s", model.ErrBackendNotConfigured, cfg.Provider)
	}
	return nil
}
