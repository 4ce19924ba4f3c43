package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string
	DBPath      string
	LLMBaseURL  string
	LLMAPIKey   string
	LLMModelID  string
	STTBaseURL  string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	dbPath := os.Getenv("FRONTDESK_DB")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			dbPath = "frontdesk.db"
		} else {
			dbPath = filepath.Join(home, ".frontdesk", "frontdesk.db")
		}
	}

	llmBase := os.Getenv("LLM_BASE_URL")
	if llmBase == "" {
		llmBase = "https://api.cerebras.ai"
	}
	llmKey := os.Getenv("LLM_API_KEY")
	if llmKey == "" {
		log.Println("Warning: LLM_API_KEY not set - model answers will fall back to escalation")
	}
	llmModel := os.Getenv("LLM_MODEL_ID")
	if llmModel == "" {
		llmModel = "gpt-oss-120b"
	}

	sttBase := os.Getenv("STT_BASE_URL")
	if sttBase == "" {
		sttBase = "http://localhost:8178"
	}

	log.Printf("config: HTTP_ADDRESS=%s db=%s", addr, dbPath)
	return Config{
		HTTPAddress: addr,
		DBPath:      dbPath,
		LLMBaseURL:  llmBase,
		LLMAPIKey:   llmKey,
		LLMModelID:  llmModel,
		STTBaseURL:  sttBase,
	}
}
