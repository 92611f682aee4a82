// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是整个应用的配置结构，从 yaml 文件加载，
// 个别基础设施地址允许用环境变量覆盖，方便容器化部署。
type Config struct {
	App struct {
		Name     string `yaml:"name"`
		Port     int    `yaml:"port"`
		LogLevel string `yaml:"logLevel"`

		FeatureFlags struct {
			// AsyncCouponIssue 开启后，发券请求进入 Redis 队列异步处理（202 + 轮询），
			// 关闭时走同步直落库的路径。
			AsyncCouponIssue bool `yaml:"asyncCouponIssue"`
		} `yaml:"featureFlags"`
	} `yaml:"app"`

	Infra struct {
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addrs string `yaml:"addrs"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers string `yaml:"brokers"`
		} `yaml:"kafka"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Zookeeper struct {
			Servers string `yaml:"servers"`
		} `yaml:"zookeeper"`
		Nacos struct {
			ServerAddrs string `yaml:"serverAddrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`
		DataPlatform struct {
			// URL 为空时关闭成交数据上报。
			URL string `yaml:"url"`
		} `yaml:"dataPlatform"`
		Lock struct {
			Backend string        `yaml:"backend"` // redis | zookeeper
			Wait    time.Duration `yaml:"wait"`
			Lease   time.Duration `yaml:"lease"`
		} `yaml:"lock"`
	} `yaml:"infra"`
}

var (
	currentConfig Config
	configOnce    sync.Once
)

// GetCurrentConfig 返回进程级配置。首次调用时完成加载。
func GetCurrentConfig() *Config {
	configOnce.Do(func() {
		currentConfig = loadConfig()
	})
	return &currentConfig
}

func loadConfig() Config {
	var cfg Config

	// 默认值
	cfg.App.Name = "commerce-server"
	cfg.App.Port = 8083
	cfg.App.LogLevel = "info"
	cfg.App.FeatureFlags.AsyncCouponIssue = true
	cfg.Infra.Mysql.DSN = "root:root@tcp(localhost:3306)/commerce?parseTime=true&charset=utf8mb4"
	cfg.Infra.Redis.Addrs = "localhost:6379"
	cfg.Infra.Kafka.Brokers = "localhost:9092"
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Lock.Backend = "redis"
	cfg.Infra.Lock.Wait = 5 * time.Second
	cfg.Infra.Lock.Lease = 10 * time.Second

	if path := getEnv("CONFIG_PATH", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			panic("failed to read config file " + path + ": " + err.Error())
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic("failed to parse config file " + path + ": " + err.Error())
		}
	}

	// 环境变量覆盖，优先级最高
	cfg.Infra.Mysql.DSN = getEnv("MYSQL_DSN", cfg.Infra.Mysql.DSN)
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.Kafka.Brokers = getEnv("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Zookeeper.Servers = getEnv("ZK_SERVERS", cfg.Infra.Zookeeper.Servers)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Infra.DataPlatform.URL = getEnv("DATA_PLATFORM_URL", cfg.Infra.DataPlatform.URL)

	return cfg
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
