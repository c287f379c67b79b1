// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Animation   AnimationConfig   `mapstructure:"animation"`
	ClientHints ClientHintsConfig `mapstructure:"client_hints"`
	Session     SessionConfig     `mapstructure:"session"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Log         LogConfig         `mapstructure:"log"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// AnimationConfig 动画门控策略
type AnimationConfig struct {
	DeviceMemoryLimit        float64 `mapstructure:"device_memory_limit"`         // 阈值（GB），>= 即允许动画
	DefaultDeviceMemoryLimit float64 `mapstructure:"default_device_memory_limit"` // 无 header 时页面能力查询的初始值，不参与判定
	UnsupportedPolicy        string  `mapstructure:"unsupported_policy"`          // permissive | conservative
}

// ClientHintsConfig Accept-CH 协商
type ClientHintsConfig struct {
	Accept   []string `mapstructure:"accept"`
	Lifetime string   `mapstructure:"lifetime"` // 如 "24h" 或秒数 "3600"，空则 86400s
}

// SessionConfig 会话配置
type SessionConfig struct {
	CookieName string `mapstructure:"cookie_name"`
	TTL        string `mapstructure:"ttl"` // 快照缓存有效期，如 "30m"
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	RateLimit      bool    `mapstructure:"rate_limit"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Cache CacheConfig `mapstructure:"cache"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Protocol       string `mapstructure:"protocol"` // grpc（默认，hertz provider）| http（OTLP/HTTP exporter）
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// setDefaults 内置默认值，配置文件缺省项回落到这里
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.middleware.rate_limit_rps", 20)
	v.SetDefault("api.middleware.rate_limit_burst", 40)
	v.SetDefault("animation.device_memory_limit", 4)
	v.SetDefault("animation.default_device_memory_limit", 4)
	v.SetDefault("animation.unsupported_policy", "permissive")
	v.SetDefault("client_hints.accept", []string{"DPR", "Width", "Viewport-Width", "ECT", "Device-Memory"})
	v.SetDefault("client_hints.lifetime", "86400s")
	v.SetDefault("session.cookie_name", "animgate_session")
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("storage.cache.type", "memory")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.prometheus.enable", true)
	v.SetDefault("monitoring.tracing.service_name", "animgate-api")
	v.SetDefault("monitoring.tracing.protocol", "grpc")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ANIMGATE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Default 仅使用内置默认值与环境变量，不读取文件
func Default() *Config {
	var config Config
	// 默认值全部可解码，这里不会失败
	_ = newViper().Unmarshal(&config)
	return &config
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// replaceEnvVars 替换 ${VAR} 形式的敏感配置
func replaceEnvVars(config *Config) {
	pw := config.Storage.Cache.Password
	if strings.HasPrefix(pw, "$") {
		envVar := strings.TrimPrefix(strings.TrimSuffix(pw, "}"), "${")
		if val := os.Getenv(envVar); val != "" {
			config.Storage.Cache.Password = val
		}
	}
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	if c.Animation.DeviceMemoryLimit <= 0 {
		return fmt.Errorf("animation.device_memory_limit 必须为正数: %v", c.Animation.DeviceMemoryLimit)
	}
	if c.Animation.DefaultDeviceMemoryLimit < 0 {
		return fmt.Errorf("animation.default_device_memory_limit 不能为负数: %v", c.Animation.DefaultDeviceMemoryLimit)
	}
	switch c.Storage.Cache.Type {
	case "", "memory":
	case "redis":
		if c.Storage.Cache.Addr == "" {
			return fmt.Errorf("storage.cache.addr 在 type=redis 时必填")
		}
	default:
		return fmt.Errorf("unsupported cache type: %s", c.Storage.Cache.Type)
	}
	if _, err := parseDuration(c.ClientHints.Lifetime); c.ClientHints.Lifetime != "" && err != nil {
		return fmt.Errorf("client_hints.lifetime 无效: %w", err)
	}
	if _, err := parseDuration(c.Session.TTL); c.Session.TTL != "" && err != nil {
		return fmt.Errorf("session.ttl 无效: %w", err)
	}
	switch c.Monitoring.Tracing.Protocol {
	case "", "grpc", "http":
	default:
		return fmt.Errorf("unsupported tracing protocol: %s", c.Monitoring.Tracing.Protocol)
	}
	return nil
}

// ClientHintsLifetime Accept-CH-Lifetime；无效时回落 86400s
func (c *Config) ClientHintsLifetime() time.Duration {
	return ParseDuration(c.ClientHints.Lifetime, 86400*time.Second)
}

// SessionTTL 会话快照有效期；无效时回落 30m
func (c *Config) SessionTTL() time.Duration {
	return ParseDuration(c.Session.TTL, 30*time.Minute)
}

// ParseDuration 解析时长字符串（Go 时长或整数秒），无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := parseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// parseDuration 纯数字按秒解析（与 Accept-CH-Lifetime 头一致），结果必须为正
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var d time.Duration
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d = time.Duration(n) * time.Second
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", s)
	}
	return d, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）；文件不存在时使用内置默认值
func LoadAPIConfig() (*Config, error) {
	const path = "configs/api.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadConfig(path)
}
