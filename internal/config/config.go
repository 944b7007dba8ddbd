package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`    // 服务器配置
	Database  DatabaseConfig  `mapstructure:"database"`  // 元数据存储配置
	Generator GeneratorConfig `mapstructure:"generator"` // 背景生成服务配置
	Composer  ComposerConfig  `mapstructure:"composer"`  // 海报合成配置
	Storage   StorageConfig   `mapstructure:"storage"`   // Blob 存储配置
	Firebase  FirebaseConfig  `mapstructure:"firebase"`  // Firebase 项目配置
	Gallery   GalleryConfig   `mapstructure:"gallery"`   // 图库与保留策略
	Auth      AuthConfig      `mapstructure:"auth"`      // 调用方身份校验
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig 元数据存储配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`            // postgres / firestore
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（postgres）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	Collection      string        `mapstructure:"collection"`        // Firestore 集合名
	LogLevel        string        `mapstructure:"log_level"`         // GORM 日志级别：silent/error/warn/info
}

// GeneratorConfig 背景生成客户端配置
type GeneratorConfig struct {
	Provider           string        `mapstructure:"provider"`             // gemini / openai / proxy
	BaseURL            string        `mapstructure:"base_url"`             // API基础地址（proxy 模式下为后端地址）
	APIKey             string        `mapstructure:"api_key"`              // API Key
	Model              string        `mapstructure:"model"`                // 模型名
	Timeout            int           `mapstructure:"timeout"`              // 单次请求超时（秒）
	Proxy              string        `mapstructure:"proxy"`                // HTTP 代理地址
	MinRequestInterval time.Duration `mapstructure:"min_request_interval"` // 全局最小请求间隔
	MaxRetries         int           `mapstructure:"max_retries"`          // 限流重试次数
	BackoffBase        time.Duration `mapstructure:"backoff_base"`         // 指数退避起始值
	BackoffCap         time.Duration `mapstructure:"backoff_cap"`          // 指数退避上限
	ProxyToken         string        `mapstructure:"proxy_token"`          // proxy 模式下无调用方令牌时使用的服务令牌
}

// ComposerConfig 海报合成配置
type ComposerConfig struct {
	Width             int     `mapstructure:"width"`               // 输出宽度
	Height            int     `mapstructure:"height"`              // 输出高度
	PreviewWidth      int     `mapstructure:"preview_width"`       // 预览图宽度
	OverlayAlpha      float64 `mapstructure:"overlay_alpha"`       // 暗色蒙层透明度
	FallbackColor     string  `mapstructure:"fallback_color"`      // 背景加载失败时的填充色
	JPEGQuality       int     `mapstructure:"jpeg_quality"`        // JPEG 质量
	ImageProxyURL     string  `mapstructure:"image_proxy_url"`     // 跨域代理前缀，如 https://wsrv.nl/?url=
	LoadTimeout       int     `mapstructure:"load_timeout"`        // 素材加载超时（秒）
	AllowPrivateHosts bool    `mapstructure:"allow_private_hosts"` // 允许抓取内网地址的素材，仅本地调试使用
	DefaultBackground string  `mapstructure:"default_background"`  // 默认库存背景
	BrandName         string  `mapstructure:"brand_name"`          // 导出文件名前缀
	DefaultLogoURL    string  `mapstructure:"default_logo_url"`    // 默认页脚 logo
	DefaultAddress    string  `mapstructure:"default_address"`     // 默认页脚地址
}

// StorageConfig Blob 存储配置
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`   // local / firebase
	LocalDir string `mapstructure:"local_dir"` // 本地存储目录
	Bucket   string `mapstructure:"bucket"`    // Firebase Storage bucket，空则使用默认 bucket
}

// FirebaseConfig Firebase 项目配置
type FirebaseConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsPath string `mapstructure:"credentials_path"` // 服务账号 JSON 路径
}

// GalleryConfig 图库与保留策略配置
type GalleryConfig struct {
	ProgramMin    int           `mapstructure:"program_min"`    // 节目单模式最少场次
	ProgramMax    int           `mapstructure:"program_max"`    // 节目单模式最多场次
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // 过期清理间隔，0 表示关闭
	SweepBatch    int           `mapstructure:"sweep_batch"`    // 单次清理条数
}

// AuthConfig 调用方身份校验
type AuthConfig struct {
	Verifier  string `mapstructure:"verifier"`   // jwt / firebase
	JWTSecret string `mapstructure:"jwt_secret"` // HMAC 密钥
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults 未在 yaml 中出现的字段使用的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.collection", "posters")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("generator.provider", "gemini")
	v.SetDefault("generator.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("generator.model", "gemini-2.5-flash-image")
	v.SetDefault("generator.timeout", 120)
	v.SetDefault("generator.min_request_interval", 2*time.Second)
	v.SetDefault("generator.max_retries", 3)
	v.SetDefault("generator.backoff_base", 5*time.Second)
	v.SetDefault("generator.backoff_cap", 60*time.Second)
	v.SetDefault("composer.width", 1080)
	v.SetDefault("composer.height", 1920)
	v.SetDefault("composer.preview_width", 270)
	v.SetDefault("composer.overlay_alpha", 0.4)
	v.SetDefault("composer.fallback_color", "#000000")
	v.SetDefault("composer.jpeg_quality", 95)
	v.SetDefault("composer.image_proxy_url", "https://wsrv.nl/?url=")
	v.SetDefault("composer.load_timeout", 10)
	v.SetDefault("composer.brand_name", "All Sports")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "./data/blobs")
	v.SetDefault("gallery.program_min", 2)
	v.SetDefault("gallery.program_max", 5)
	v.SetDefault("gallery.sweep_interval", time.Hour)
	v.SetDefault("gallery.sweep_batch", 200)
	v.SetDefault("auth.verifier", "jwt")
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	switch cfg.Generator.Provider {
	case "gemini":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			cfg.Generator.APIKey = v
		}
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.Generator.APIKey = v
		}
	}
	if v := os.Getenv("GENERATOR_PROXY"); v != "" {
		cfg.Generator.Proxy = v
	}
	if v := os.Getenv("GENERATOR_PROXY_TOKEN"); v != "" {
		cfg.Generator.ProxyToken = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("FIREBASE_CREDENTIALS_PATH"); v != "" {
		cfg.Firebase.CredentialsPath = v
	}
}

// Validate 启动前检查致命配置缺失（缺少生成服务凭证视为致命错误）
func (c *Config) Validate() error {
	switch c.Generator.Provider {
	case "gemini", "openai":
		if c.Generator.APIKey == "" {
			return fmt.Errorf("生成服务 %s 未配置 API Key", c.Generator.Provider)
		}
	case "proxy":
		if c.Generator.BaseURL == "" {
			return fmt.Errorf("proxy 模式未配置后端地址 generator.base_url")
		}
	default:
		return fmt.Errorf("未支持的生成服务: %s", c.Generator.Provider)
	}
	if c.Composer.Width <= 0 || c.Composer.Height <= 0 {
		return fmt.Errorf("无效的画布尺寸 %dx%d", c.Composer.Width, c.Composer.Height)
	}
	if c.Gallery.ProgramMin < 2 || c.Gallery.ProgramMax < c.Gallery.ProgramMin {
		return fmt.Errorf("无效的节目单场次范围 [%d, %d]", c.Gallery.ProgramMin, c.Gallery.ProgramMax)
	}
	if c.Auth.Verifier == "jwt" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT 校验未配置 auth.jwt_secret")
	}
	return nil
}
