package main

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TASK_MENTION_PREVIEW", "")
	t.Setenv("CHAT_MENTION_PREVIEW", "")

	cfg := LoadConfig()
	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.TaskMentionPreview != 100 || cfg.ChatMentionPreview != 200 {
		t.Errorf("preview lengths = %d/%d, want 100/200", cfg.TaskMentionPreview, cfg.ChatMentionPreview)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TASK_MENTION_PREVIEW", "50")
	t.Setenv("CHAT_MENTION_PREVIEW", "not-a-number")

	cfg := LoadConfig()
	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.TaskMentionPreview != 50 {
		t.Errorf("TaskMentionPreview = %d, want 50", cfg.TaskMentionPreview)
	}
	// Unparseable values fall back.
	if cfg.ChatMentionPreview != 200 {
		t.Errorf("ChatMentionPreview = %d, want 200", cfg.ChatMentionPreview)
	}
}
