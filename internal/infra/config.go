package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации обеих служб (auditor и console).
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	LogStore  LogStoreConfig  `mapstructure:"logstore"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера консоли.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (кэш справочника прав).
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// AuthConfig содержит пути к RSA ключам и настройки JWT консоли.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"` // Только для Console API
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	PublicKey      []byte
	PrivateKey     []byte
}

// AnalysisConfig управляет окном сбора и конвейером обследования.
type AnalysisConfig struct {
	LookbackDays int           `mapstructure:"lookback_days"`
	MaxEntries   int           `mapstructure:"max_entries"`
	WorkerWidth  int           `mapstructure:"worker_width"`
	StallTimeout time.Duration `mapstructure:"stall_timeout"`
	ReportDir    string        `mapstructure:"report_dir"`

	// Пути к JSON-справочникам прав, по версиям API: v1.0, beta.
	PermMapPaths map[string]string `mapstructure:"permmap_paths"`
}

// LogStoreConfig описывает workspace с журналами активности и лимиты надежности.
type LogStoreConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	WorkspaceID string        `mapstructure:"workspace_id"`
	Scope       string        `mapstructure:"scope"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	RPS           float64       `mapstructure:"rps"`
	Burst         int           `mapstructure:"burst"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
}

// DirectoryConfig — доступ к каталогу тенанта (service principals и гранты).
type DirectoryConfig struct {
	Authority    string `mapstructure:"authority"`
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Endpoint     string `mapstructure:"endpoint"`
	Scope        string `mapstructure:"scope"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: SERVER_PORT=9000 перекроет server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Загрузка ключей из Файла ИЛИ из ENV
	// Сначала проверяем, не лежит ли сам PEM-ключ в ENV (для Docker/K8s)
	// Если нет — читаем файл по указанному пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.cache_ttl", 12*time.Hour)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("analysis.lookback_days", 30)
	v.SetDefault("analysis.max_entries", 100000)
	v.SetDefault("analysis.worker_width", 10)
	v.SetDefault("analysis.stall_timeout", 5*time.Minute)
	v.SetDefault("analysis.report_dir", "./reports")

	v.SetDefault("logstore.endpoint", "https://api.loganalytics.io")
	v.SetDefault("logstore.scope", "https://api.loganalytics.io/.default")
	v.SetDefault("logstore.http_timeout", 120*time.Second)
	v.SetDefault("logstore.rps", 4.0)
	v.SetDefault("logstore.burst", 2)
	v.SetDefault("logstore.retry_attempts", 4)
	v.SetDefault("logstore.cb_max_requests", 3)
	v.SetDefault("logstore.cb_interval", 60*time.Second)
	v.SetDefault("logstore.cb_timeout", 30*time.Second)

	v.SetDefault("directory.authority", "https://login.microsoftonline.com")
	// Без сегмента версии: клиент каталога сам добавляет /v1.0
	v.SetDefault("directory.endpoint", "https://graph.microsoft.com")
	v.SetDefault("directory.scope", "https://graph.microsoft.com/.default")
}

// loadKeyResource — универсальный хелпер: ключ из ENV или из файла.
func loadKeyResource(path string, envDataKey string) []byte {
	// Если ключ прилетел напрямую в ENV (Base64 или PEM)
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	// Иначе читаем файл по пути из конфига
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
