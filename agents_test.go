package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegisterAgent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	agent := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev", Group: "core"})
	if agent.ID == "" {
		t.Fatal("expected generated ID")
	}
	if agent.Status != "idle" || agent.Level != "specialist" {
		t.Errorf("unexpected defaults: status=%s level=%s", agent.Status, agent.Level)
	}
	if agent.Group == nil || *agent.Group != "core" {
		t.Errorf("group not stored: %+v", agent.Group)
	}

	got, err := GetAgentBySessionKey(ctx, db, agent.SessionKey)
	if err != nil {
		t.Fatalf("lookup by session key: %v", err)
	}
	if got.ID != agent.ID {
		t.Errorf("session key resolved to %s, want %s", got.ID, agent.ID)
	}
}

func TestRegisterAgentDuplicateName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})

	_, err := RegisterAgent(ctx, db, RegisterAgentParams{
		Name: "alice", Role: "frontend dev", Status: "idle", Level: "specialist",
		SessionKey: "agent:alice2:other",
	})
	if err == nil {
		t.Fatal("expected case-insensitive name collision to be rejected")
	}
}

func TestGenerateSessionKey(t *testing.T) {
	key, err := generateSessionKey("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(key, "agent:alpha:") {
		t.Errorf("unexpected key shape: %s", key)
	}
	if sessionKeyAlias(key) != "alpha" {
		t.Errorf("alias segment = %q, want alpha", sessionKeyAlias(key))
	}
}

func TestUpdateAgentStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	agent := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})
	task := mustTask(t, db, CreateTaskParams{Title: "Ship it"})

	if err := UpdateAgentStatus(ctx, db, agent.ID, "active", &task.ID); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, err := GetAgentByID(ctx, db, agent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "active" {
		t.Errorf("status = %s, want active", got.Status)
	}
	if got.CurrentTaskID == nil || *got.CurrentTaskID != task.ID {
		t.Errorf("current task not set: %+v", got.CurrentTaskID)
	}

	activity := latestActivity(t, db)
	if activity.Type != "status_change" || activity.Message != "Alice is now active" {
		t.Errorf("unexpected activity: %+v", activity)
	}
}

func TestHeartbeat(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	agent := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})
	if err := Heartbeat(ctx, db, agent.ID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	got, err := GetAgentByID(ctx, db, agent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastHeartbeat == nil {
		t.Error("last_heartbeat not updated")
	}

	err = Heartbeat(ctx, db, "missing-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound for unknown agent, got %v", err)
	}
}

func TestListAgentDirectoryOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustAgent(t, db, RegisterAgentParams{Name: "First", Role: "dev"})
	time.Sleep(2 * time.Millisecond) // timestamps are ms precision
	mustAgent(t, db, RegisterAgentParams{Name: "Second", Role: "dev"})

	agents, err := ListAgentDirectory(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 2 {
		t.Fatalf("got %d agents, want 2", len(agents))
	}
	// Registration order, which role resolution depends on.
	if agents[0].Name != "First" || agents[1].Name != "Second" {
		t.Errorf("unexpected order: %s, %s", agents[0].Name, agents[1].Name)
	}
}
