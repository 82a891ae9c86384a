package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"development"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Gift       GiftConfig       `yaml:"gift"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Admin      AdminConfig      `yaml:"admin"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
}

// JWTConfig настройка jwt
type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// GiftConfig экономика колеса удачи
type GiftConfig struct {
	TokenPrice        int64         `yaml:"token_price" env-default:"1000"`
	TokensPerPurchase int           `yaml:"tokens_per_purchase" env-default:"1"`
	FreeSpinCooldown  time.Duration `yaml:"free_spin_cooldown" env-default:"24h"`
	InitialBalance    int64         `yaml:"initial_balance" env-default:"0"`
}

// TelegramConfig бот и вход через Telegram. Пустой BotToken отключает бота.
type TelegramConfig struct {
	BotToken        string        `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`
	BotSecret       string        `yaml:"-" env:"TELEGRAM_BOT_SECRET"`
	BotUsername     string        `yaml:"bot_username"`
	AdminChatID     int64         `yaml:"admin_chat_id"`
	AdminContactURL string        `yaml:"admin_contact_url" env-default:"https://t.me/"`
	LoginTTL        time.Duration `yaml:"login_ttl" env-default:"5m"`
	SweepInterval   time.Duration `yaml:"sweep_interval" env-default:"5m"`
}

// RedisConfig хранит ожидающие входы. Пустой адрес включает хранение в памяти.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

// StorageConfig S3-совместимое хранилище скриншотов оплаты. Пустой bucket отключает загрузку.
type StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region" env-default:"auto"`
	Endpoint        string `yaml:"endpoint"`
	PublicBaseURL   string `yaml:"public_base_url"`
	AccessKeyID     string `yaml:"-" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"S3_SECRET_ACCESS_KEY"`
}

// AdminConfig учетная запись администратора панели
type AdminConfig struct {
	Username     string `yaml:"username" env-default:"admin"`
	PasswordHash string `yaml:"-" env:"ADMIN_PASSWORD_HASH"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}
