package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envSearchDirs .env 文件搜索目录（仅 dev/test 使用，生产环境由 systemd 注入）
var envSearchDirs = []string{
	".",
	"..",
	"../..",
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	Gateway        GatewayConfig
	Worker         WorkerConfig
	MinIO          MinIOConfig
	Sandbox        SandboxConfig
	LLM            LLMConfig
	Auth           AuthConfig
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	// 加载 .env
	for _, dir := range envSearchDirs {
		if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
			break
		}
	}

	// 解析环境
	env := parseEnv(getEnv("APP_ENV", "dev"))

	// 加载 YAML 配置
	yamlCfg := loadYAMLConfig(env)

	// 从环境变量获取敏感信息
	dbPassword := getEnv("DB_PASSWORD", "")
	yamlCfg.Database.URI = getEnv("DATABASE_URL", "")
	yamlCfg.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", "")
	yamlCfg.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", "")
	yamlCfg.LLM.OpenAIKey = getEnv("OPENAI_API_KEY", "")
	yamlCfg.LLM.GeminiKey = getEnv("GEMINI_API_KEY", "")
	yamlCfg.Auth.JWTSecret = getEnv("JWT_SECRET", "")

	driver := detectDatabaseDriver(yamlCfg.Database.Driver, yamlCfg.Database.URI)

	cfg := &Config{
		Env:            env,
		DatabaseDriver: driver,
		DatabaseURL:    buildDatabaseURL(driver, yamlCfg.Database, dbPassword),
		RedisURL:       buildRedisURL(yamlCfg.Redis),
		Gateway:        yamlCfg.Gateway,
		Worker:         yamlCfg.Worker,
		MinIO:          yamlCfg.MinIO,
		Sandbox:        yamlCfg.Sandbox,
		LLM:            yamlCfg.LLM,
		Auth:           yamlCfg.Auth,
	}

	cfg.Worker.validate()
	cfg.Sandbox.validate()
	cfg.LLM.validate()

	return cfg
}

// configPathsForEnv 根据环境返回配置文件搜索路径
func configPathsForEnv(env Environment) []string {
	if env == EnvProduction {
		return []string{"/etc/vibebuild"}
	}
	// dev/test: 项目根目录的 configs/
	return []string{"configs", "../configs", "../../configs"}
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	// 1. 初始化默认值
	cfg := &YAMLConfig{
		Gateway:  GatewayConfig{Port: "8090"},
		Worker:   WorkerConfig{Concurrency: 2, PollInterval: 5 * time.Second, MaxIterations: 18},
		Database: DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432, User: "vibebuild", Name: "vibebuild", SSLMode: "disable"},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		MinIO:    MinIOConfig{Endpoint: "localhost:9000", Bucket: "vibebuild"},
		Sandbox: SandboxConfig{
			Image:         "vibebuild/nextjs-sandbox:latest",
			AppPort:       3000,
			PreviewDomain: "preview.localhost",
			WorkDir:       "/app",
			StopTimeout:   10 * time.Second,
		},
		LLM: LLMConfig{MaxTokens: 4096, RetryBackoff: 2 * time.Second},
	}

	paths := configPathsForEnv(env)

	// 2. 加载 common.yaml（公共配置）
	for _, base := range paths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	// 3. 加载 {env}.yaml（环境特定配置，覆盖公共配置）
	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range paths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, DB: %s/%s, Redis: %s}",
		c.Env, c.DatabaseDriver, maskPassword(c.DatabaseURL), c.RedisURL)
}

// maskPassword 隐藏密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:/]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}

// validate 验证并填充 Worker 默认值
func (w *WorkerConfig) validate() {
	if w.ConsumerName == "" {
		if host, err := os.Hostname(); err == nil {
			w.ConsumerName = host
		} else {
			w.ConsumerName = "worker-default"
		}
	}
	if w.Concurrency <= 0 {
		w.Concurrency = 2
	}
	if w.PollInterval <= 0 {
		w.PollInterval = 5 * time.Second
	}
	if w.MaxIterations <= 0 {
		w.MaxIterations = 18
	}
}

// validate 验证并填充沙箱默认值
func (s *SandboxConfig) validate() {
	if s.Image == "" {
		s.Image = "vibebuild/nextjs-sandbox:latest"
	}
	if s.AppPort <= 0 {
		s.AppPort = 3000
	}
	if s.WorkDir == "" {
		s.WorkDir = "/app"
	}
	if s.StopTimeout <= 0 {
		s.StopTimeout = 10 * time.Second
	}
}

// validate 验证并填充大模型默认值
func (l *LLMConfig) validate() {
	if l.MaxTokens <= 0 {
		l.MaxTokens = 4096
	}
	if l.RetryBackoff <= 0 {
		l.RetryBackoff = 2 * time.Second
	}
}
