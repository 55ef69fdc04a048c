package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	OSS        OSSConfig        `mapstructure:"oss"`
	OAuth      OAuthConfig      `mapstructure:"oauth"`
	Email      EmailConfig      `mapstructure:"email"`
	Queue      QueueConfig      `mapstructure:"queue"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Plans      PlansConfig      `mapstructure:"plans"`
	Trial      TrialConfig      `mapstructure:"trial"`
	Referral   ReferralConfig   `mapstructure:"referral"`
	Generation GenerationConfig `mapstructure:"generation"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type StripeConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	SuccessURL     string `mapstructure:"success_url"`
	CancelURL      string `mapstructure:"cancel_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type OAuthConfig struct {
	Github GithubOAuthConfig `mapstructure:"github"`
}

type GithubOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type QueueConfig struct {
	GenerationQueue string `mapstructure:"generation_queue"`
	MaxWorkers      int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// PlansConfig 套餐目录，进程启动时加载，运行期只读
type PlansConfig struct {
	Levels map[string]PlanLevel `mapstructure:"levels"`
	Flex   FlexConfig           `mapstructure:"flex"`
}

type PlanLevel struct {
	RequestLimit   int      `mapstructure:"request_limit"`
	MonthlyPriceID string   `mapstructure:"monthly_price_id"`
	YearlyPriceID  string   `mapstructure:"yearly_price_id"`
	Price          float64  `mapstructure:"price"`
	Features       []string `mapstructure:"features"`
}

// FlexConfig 弹性加量包：一次性购买，只增加额度，不改变套餐
type FlexConfig struct {
	Requests int     `mapstructure:"requests"`
	PriceID  string  `mapstructure:"price_id"`
	Price    float64 `mapstructure:"price"`
}

type TrialConfig struct {
	Days     int `mapstructure:"days"`
	Requests int `mapstructure:"requests"`
}

type ReferralConfig struct {
	TTLDays      int    `mapstructure:"ttl_days"`
	CookieDomain string `mapstructure:"cookie_domain"`
}

type GenerationConfig struct {
	Models []GenerationModelConfig `mapstructure:"models"`
}

// GenerationModelConfig 生成模型配置，cost_units 为单次调用扣除的额度
type GenerationModelConfig struct {
	Name        string `mapstructure:"name"`
	DisplayName string `mapstructure:"display_name"`
	APIKey      string `mapstructure:"api_key"`
	CostUnits   int    `mapstructure:"cost_units"`
	Description string `mapstructure:"description"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ModelByName 按名称查找生成模型配置
func (c *Config) ModelByName(name string) *GenerationModelConfig {
	for i := range c.Generation.Models {
		if c.Generation.Models[i].Name == name {
			return &c.Generation.Models[i]
		}
	}
	return nil
}

// PlanLevelOrFree 按套餐 ID 查找套餐定义，未知套餐回落到 free
func (c *Config) PlanLevelOrFree(plan string) PlanLevel {
	if level, ok := c.Plans.Levels[plan]; ok {
		return level
	}
	return c.Plans.Levels["free"]
}
