package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Separation SeparationConfig
	Transcode  TranscodeConfig
	Booster    BoosterConfig
	Internal   InternalConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Path string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig holds the R2 object storage credentials.
type StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// SeparationConfig points at the audio AI microservice. Timeout is in
// seconds and must cover a full separation run.
type SeparationConfig struct {
	ServiceURL string
	Timeout    int
}

// TranscodeConfig tunes the local ffmpeg pipeline and the worker pool
// that runs it.
type TranscodeConfig struct {
	FFmpegBin  string
	FFprobeBin string
	TimeoutMin int
	TempDir    string
	Workers    int
	QueueSize  int
}

// BoosterConfig tunes the synthetic progress ramp for remote jobs.
type BoosterConfig struct {
	Floor       int
	Ceiling     int
	Step        int
	IntervalSec int
}

type InternalConfig struct {
	Token string
}

type RateLimitConfig struct {
	UploadPerHour     int
	SeparationPerHour int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("database.path", "data/jobs.db")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("storage.account_id", "")
	viper.SetDefault("storage.access_key_id", "")
	viper.SetDefault("storage.secret_access_key", "")
	viper.SetDefault("storage.bucket_name", "")
	viper.SetDefault("storage.public_url", "")
	viper.SetDefault("separation.service_url", "http://localhost:8500")
	viper.SetDefault("separation.timeout", 1800)
	viper.SetDefault("transcode.ffmpeg_bin", "ffmpeg")
	viper.SetDefault("transcode.ffprobe_bin", "ffprobe")
	viper.SetDefault("transcode.timeout_min", 30)
	viper.SetDefault("transcode.temp_dir", os.TempDir())
	viper.SetDefault("transcode.workers", 4)
	viper.SetDefault("transcode.queue_size", 100)
	viper.SetDefault("booster.floor", 5)
	viper.SetDefault("booster.ceiling", 80)
	viper.SetDefault("booster.step", 2)
	viper.SetDefault("booster.interval_sec", 5)
	viper.SetDefault("internal.token", "")
	viper.SetDefault("ratelimit.upload_per_hour", 50)
	viper.SetDefault("ratelimit.separation_per_hour", 10)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			AccountID:       viper.GetString("storage.account_id"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: readSecret("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		Separation: SeparationConfig{
			ServiceURL: viper.GetString("separation.service_url"),
			Timeout:    viper.GetInt("separation.timeout"),
		},
		Transcode: TranscodeConfig{
			FFmpegBin:  viper.GetString("transcode.ffmpeg_bin"),
			FFprobeBin: viper.GetString("transcode.ffprobe_bin"),
			TimeoutMin: viper.GetInt("transcode.timeout_min"),
			TempDir:    viper.GetString("transcode.temp_dir"),
			Workers:    viper.GetInt("transcode.workers"),
			QueueSize:  viper.GetInt("transcode.queue_size"),
		},
		Booster: BoosterConfig{
			Floor:       viper.GetInt("booster.floor"),
			Ceiling:     viper.GetInt("booster.ceiling"),
			Step:        viper.GetInt("booster.step"),
			IntervalSec: viper.GetInt("booster.interval_sec"),
		},
		Internal: InternalConfig{
			Token: readSecret("internal.token"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour:     viper.GetInt("ratelimit.upload_per_hour"),
			SeparationPerHour: viper.GetInt("ratelimit.separation_per_hour"),
		},
	}

	return cfg, nil
}

// readSecret resolves a secret setting, preferring a <KEY>_FILE variant
// pointing at a mounted secret file over the inline value.
func readSecret(key string) string {
	fileKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_")) + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return viper.GetString(key)
}
