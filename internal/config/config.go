package config

import (
	"os"
	"strconv"
)

// Config holds all service configuration, loaded from the environment.
type Config struct {
	MongoURI  string
	MongoDB   string
	RedisAddr string
	HTTPPort  string
	JWTSecret string

	Game GameConfig
	AI   AIConfig
}

// GameConfig holds the fixed gameplay constants.
type GameConfig struct {
	QuestionsPerRound int // questions generated per round
	QuestionTimerSec  int // countdown per question
	FeedbackDelaySec  int // pause after an answer before advancing
	DefaultRounds     int // rounds for a new match
	MaxRounds         int
}

// Load reads configuration from the environment with defaults.
func Load() *Config {
	return &Config{
		MongoURI:  getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:   getEnvOrDefault("MONGO_DB", "brainduel"),
		RedisAddr: getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		HTTPPort:  getEnvOrDefault("PORT", "8080"),
		JWTSecret: getEnvOrDefault("JWT_SECRET", "super-secret-key-change-in-production"),
		Game: GameConfig{
			QuestionsPerRound: getEnvInt("GAME_QUESTIONS_PER_ROUND", 3),
			QuestionTimerSec:  getEnvInt("GAME_QUESTION_TIMER_SEC", 15),
			FeedbackDelaySec:  getEnvInt("GAME_FEEDBACK_DELAY_SEC", 2),
			DefaultRounds:     getEnvInt("GAME_DEFAULT_ROUNDS", 3),
			MaxRounds:         getEnvInt("GAME_MAX_ROUNDS", 9),
		},
		AI: DefaultAIConfig(),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
