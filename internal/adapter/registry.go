package adapter

import (
	"fmt"
	"sort"

	"MatchPoster/internal/interfaces"
	"MatchPoster/internal/model"

	"github.com/sirupsen/logrus"
)

// ========== 全局工厂函数注册表 ==========
var factoryRegistry = make(map[model.ProviderType]interfaces.Factory)

// Register 供各生成服务包的 init 函数调用，注册工厂函数
func Register(provider model.ProviderType, factory interfaces.Factory) {
	if factory == nil {
		panic(fmt.Sprintf("生成服务%s的工厂函数不能为nil", provider))
	}
	if _, exists := factoryRegistry[provider]; exists {
		logrus.Warnf("生成服务%s已注册，将覆盖原有实现", provider)
	}
	factoryRegistry[provider] = factory
}

// GetFactory 获取指定生成服务的工厂函数
func GetFactory(provider model.ProviderType) (interfaces.Factory, bool) {
	factory, ok := factoryRegistry[provider]
	return factory, ok
}

// ListFactories 列出所有已注册的生成服务
func ListFactories() []model.ProviderType {
	providers := make([]model.ProviderType, 0, len(factoryRegistry))
	for p := range factoryRegistry {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}
