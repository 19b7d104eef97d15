package config

import (
	"os"
	"strconv"
	"time"
)

// AssistantSettings groups the env-tunable knobs of the chat pipeline.
type AssistantSettings struct {
	GCPProject  string
	GCPLocation string
	GenModel    string
	EmbedModel  string

	RetrievalTimeout time.Duration
	MaxToolTurns     int
	HistoryLimit     int

	ShortLimit  int
	ShortWindow time.Duration
	LongLimit   int
	LongWindow  time.Duration

	ArchiveInterval time.Duration
	ArchiveIdleFor  time.Duration
}

func LoadAssistantSettings() AssistantSettings {
	return AssistantSettings{
		GCPProject:  os.Getenv("GCP_PROJECT"),
		GCPLocation: envString("GCP_LOCATION", "europe-west1"),
		GenModel:    envString("ASSISTANT_MODEL", "gemini-1.5-flash"),
		EmbedModel:  envString("EMBED_MODEL", "text-embedding-004"),

		RetrievalTimeout: envDuration("RETRIEVAL_TIMEOUT_MS", 2500*time.Millisecond),
		MaxToolTurns:     envInt("MAX_TOOL_TURNS", 4),
		HistoryLimit:     envInt("HISTORY_LIMIT", 20),

		ShortLimit:  envInt("CHAT_LIMIT_PER_MINUTE", 10),
		ShortWindow: time.Minute,
		LongLimit:   envInt("CHAT_LIMIT_PER_HOUR", 120),
		LongWindow:  time.Hour,

		ArchiveInterval: envDuration("ARCHIVE_INTERVAL_MS", 6*time.Hour),
		ArchiveIdleFor:  envDuration("ARCHIVE_IDLE_MS", 30*24*time.Hour),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}
