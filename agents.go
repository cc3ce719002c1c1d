package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// generateSessionKey builds a fresh "agent:<name>:<random>" session key. The
// part after the first ':' doubles as a squad-chat mention alias.
func generateSessionKey(name string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session key: %w", err)
	}
	return "agent:" + name + ":" + hex.EncodeToString(b), nil
}

// RegisterAgentParams holds parameters for registering an agent.
type RegisterAgentParams struct {
	Name        string
	Role        string
	Status      string
	Level       string
	SpecialRole string
	SessionKey  string
	Group       string
}

// RegisterAgent creates a new agent. Display names are unique
// case-insensitively so mention resolution stays deterministic.
func RegisterAgent(ctx context.Context, db *sql.DB, p RegisterAgentParams) (*Agent, error) {
	now := time.Now()
	id := newEntityID()

	var group interface{}
	if p.Group != "" {
		group = p.Group
	}
	var specialRole interface{}
	if p.SpecialRole != "" {
		specialRole = p.SpecialRole
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO agents (id, name, role, status, level, special_role, session_key, grp, last_heartbeat, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Name, p.Role, p.Status, p.Level, specialRole, p.SessionKey, group, millis(now), millis(now))
	if err != nil {
		return nil, fmt.Errorf("insert agent: %w", err)
	}

	return getAgent(ctx, db, id)
}

// ListAgentDirectory returns every agent in registration order.
func ListAgentDirectory(ctx context.Context, db *sql.DB) ([]Agent, error) {
	return listAgents(ctx, db)
}

// GetAgentByID looks up one agent.
func GetAgentByID(ctx context.Context, db *sql.DB, id string) (*Agent, error) {
	return getAgent(ctx, db, id)
}

// GetAgentBySessionKey resolves the authenticated caller.
func GetAgentBySessionKey(ctx context.Context, db *sql.DB, sessionKey string) (*Agent, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE session_key = ?`, sessionKey)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session key: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}
	return &a, nil
}

// UpdateAgentStatus patches an agent's status and current task, and logs a
// status_change activity.
func UpdateAgentStatus(ctx context.Context, db *sql.DB, agentID, status string, currentTaskID *string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	agent, err := getAgent(ctx, tx, agentID)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE agents SET status = ?, current_task_id = ? WHERE id = ?`,
		status, nullable(currentTaskID), agentID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}

	err = insertActivity(ctx, tx, Activity{
		Type:      "status_change",
		AgentID:   &agentID,
		Message:   fmt.Sprintf("%s is now %s", agent.Name, status),
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Heartbeat bumps an agent's last_heartbeat timestamp.
func Heartbeat(ctx context.Context, db *sql.DB, agentID string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE agents SET last_heartbeat = ? WHERE id = ?`, millis(time.Now()), agentID)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}
	return nil
}
