package model

// ProviderType 生成服务类型
type ProviderType = string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOpenAI ProviderType = "openai"
	ProviderProxy  ProviderType = "proxy" // 经后端转发，后端校验调用方令牌
)

// PortraitAspect 海报比例
const PortraitAspect = "9:16"

// BackendRequest 发给生成服务的一次请求
type BackendRequest struct {
	TemplateID  string      // 提示词模板 id
	Prompt      string      // 已插值的提示词
	HomeTeam    string      //
	AwayTeam    string      //
	Date        string      // 比赛日期，可空
	Time        string      // 开球时间，可空
	Venue       string      // 场馆，可空
	Competition string      // 赛事名称，可空
	Style       RenderStyle // proxy 模式由后端自行选模板
	MatchCount  int         // 节目单场次，单场为 0
	AspectRatio string      // 如 9:16
	Token       string      // 调用方身份令牌，仅 proxy 模式转发
}

// IsProgram 是否为节目单背景请求
func (r BackendRequest) IsProgram() bool { return r.MatchCount > 0 }

// GeneratedImage 生成结果
type GeneratedImage struct {
	Data     []byte
	MimeType string
}
