package main

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port          string
	DBPath        string
	AdminUser     string
	AdminPass     string
	SessionSecret string

	// Prefix lengths for free text embedded in notification summaries.
	TaskMentionPreview int
	ChatMentionPreview int
}

func LoadConfig() Config {
	return Config{
		Port:               envOrDefault("PORT", "8080"),
		DBPath:             envOrDefault("DB_PATH", "./mission-control.db"),
		AdminUser:          envOrDefault("ADMIN_USER", "admin"),
		AdminPass:          envOrDefault("ADMIN_PASS", "changeme"),
		SessionSecret:      envOrDefault("SESSION_SECRET", "change-this-secret-in-production"),
		TaskMentionPreview: envIntOrDefault("TASK_MENTION_PREVIEW", 100),
		ChatMentionPreview: envIntOrDefault("CHAT_MENTION_PREVIEW", 200),
	}
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
