package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIBaseURL string `yaml:"api_base_url"`
	SocketURL  string `yaml:"socket_url"`
	StorePath  string `yaml:"store_path"`
	LogDir     string `yaml:"log_dir"`
}

// LoadConfig reads environment variables (with a .env autoload) and, when
// LEARNEX_CONFIG points at a YAML file, overlays values from it. Environment
// variables win over the file.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		APIBaseURL: "http://localhost:5000",
		SocketURL:  "ws://localhost:5000/ws",
		StorePath:  "learnex.db",
		LogDir:     "./logs",
	}

	if path := os.Getenv("LEARNEX_CONFIG"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(data, &cfg)
		}
	}

	cfg.APIBaseURL = getEnv("LEARNEX_API_URL", cfg.APIBaseURL)
	cfg.SocketURL = getEnv("LEARNEX_SOCKET_URL", cfg.SocketURL)
	cfg.StorePath = getEnv("LEARNEX_STORE_PATH", cfg.StorePath)
	cfg.LogDir = getEnv("LEARNEX_LOG_DIR", cfg.LogDir)

	return cfg
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}
