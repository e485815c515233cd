package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はプロセス起動時に確定する設定を保持します
// CMS や生成モデルの認証情報は app_config テーブル側で管理されるため、
// ここには含めません（settings パッケージを参照）
type Config struct {
	// Database設定
	Database DatabaseConfig

	// ワーカープールの並列数
	MaxWorkers int

	// 投稿一覧キャッシュのTTL（秒）
	PostCacheTTLSeconds int

	// CMS一覧取得時の1ページあたり件数
	FetchPerPage int
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "wpautogen"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "wpautogen"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MaxWorkers:          getEnvAsInt("MAX_WORKERS", 3),
		PostCacheTTLSeconds: getEnvAsInt("POST_CACHE_TTL", 30),
		FetchPerPage:        getEnvAsInt("FETCH_PER_PAGE", 100),
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
