// Package config 统一配置管理
//
// 配置文件格式统一：构建 Worker 和实时网关共用同一 YAML schema，
// 通过不同章节（section）区分各组件的配置。
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在 .env 文件中（YAML 中不存储任何密码）。
//	.env 文件同时被 Docker Compose（--env-file）、Go 应用（godotenv）、
//	systemd（EnvironmentFile=）共用，确保单一数据源。
//
// 环境：
//   - 开发: APP_ENV=dev → configs/dev.yaml + .env
//   - 测试: APP_ENV=test → configs/test.yaml + .env.test
//   - 生产: APP_ENV=prod → /etc/vibebuild/prod.yaml + prod.env
package config

import "time"

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test" // 测试环境（集成测试 + E2E 共用）
	EnvDevelopment Environment = "dev"
)

// YAMLConfig 统一 YAML 配置文件结构
// 构建 Worker 和实时网关共用此格式，通过章节区分
type YAMLConfig struct {
	Gateway  GatewayConfig  `yaml:"gateway"`  // 实时网关（WebSocket 出口）
	Worker   WorkerConfig   `yaml:"worker"`   // 构建 Worker
	Database DatabaseConfig `yaml:"database"` // 数据库（消息/产物持久化）
	Redis    RedisConfig    `yaml:"redis"`    // Redis（事件流 + 队列 + 阶段缓存）
	MinIO    MinIOConfig    `yaml:"minio"`    // MinIO 对象存储（产物文件快照）
	Sandbox  SandboxConfig  `yaml:"sandbox"`  // 沙箱容器
	LLM      LLMConfig      `yaml:"llm"`      // 大模型
	Auth     AuthConfig     `yaml:"auth"`     // 订阅令牌签发
}

// GatewayConfig 实时网关配置
type GatewayConfig struct {
	Port string `yaml:"port"`
}

// WorkerConfig 构建 Worker 配置
type WorkerConfig struct {
	ConsumerName  string        `yaml:"consumer_name"`  // 消费者组内的消费者名，空则用主机名
	Concurrency   int           `yaml:"concurrency"`    // 并行处理的构建数
	PollInterval  time.Duration `yaml:"poll_interval"`  // 队列空闲时的阻塞读超时
	MaxIterations int           `yaml:"max_iterations"` // 智能体循环迭代上限默认值
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver  string `yaml:"driver"` // postgres / sqlite / mongodb
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
	Path    string `yaml:"path"` // sqlite 文件路径
	URI     string `yaml:"-"`    // mongodb URI，只从 DATABASE_URL 环境变量读取
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`
}

// MinIOConfig MinIO 对象存储配置
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	AccessKey string `yaml:"-"` // 只从 MINIO_ACCESS_KEY 环境变量读取
	SecretKey string `yaml:"-"` // 只从 MINIO_SECRET_KEY 环境变量读取
}

// SandboxConfig 沙箱容器配置
type SandboxConfig struct {
	Image         string        `yaml:"image"`          // 构建沙箱镜像
	AppPort       int           `yaml:"app_port"`       // 沙箱内应用监听端口
	PreviewDomain string        `yaml:"preview_domain"` // 预览 URL 域名后缀
	WorkDir       string        `yaml:"work_dir"`       // 沙箱内工作目录
	StopTimeout   time.Duration `yaml:"stop_timeout"`   // 停止容器的宽限时间
}

// LLMConfig 大模型配置
//
// Tiers 按优先级排列，首项为主模型，后续为降级备选。
// 空列表时使用内置默认链。
type LLMConfig struct {
	Tiers        []LLMTier     `yaml:"tiers"`
	MaxTokens    int           `yaml:"max_tokens"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	OpenAIKey    string        `yaml:"-"` // 只从 OPENAI_API_KEY 环境变量读取
	GeminiKey    string        `yaml:"-"` // 只从 GEMINI_API_KEY 环境变量读取
}

// LLMTier 单个模型档位
type LLMTier struct {
	Provider string `yaml:"provider"` // openai / google
	Model    string `yaml:"model"`
}

// AuthConfig 订阅令牌配置
// 注意：JWTSecret 只从 JWT_SECRET 环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret string `yaml:"-"`
	TokenTTL  string `yaml:"token_ttl"` // 例如 "15m"
}
