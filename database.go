package main

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

func InitDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	// Wait for locks instead of failing writes with SQLITE_BUSY; the
	// out-of-band heartbeat bump otherwise races the next request's write.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		role TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('idle','active','blocked')),
		level TEXT NOT NULL CHECK(level IN ('intern','specialist','lead')),
		special_role TEXT CHECK(special_role IN ('overseer','nagger')),
		session_key TEXT NOT NULL UNIQUE,
		current_task_id TEXT REFERENCES tasks(id),
		grp TEXT,
		last_heartbeat INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('inbox','assigned','in_progress','review','done','blocked')),
		assignee_ids TEXT NOT NULL DEFAULT '[]',
		created_by TEXT REFERENCES agents(id),
		priority TEXT CHECK(priority IN ('low','medium','high','urgent')),
		deliverable_ids TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL REFERENCES tasks(id),
		from_agent_id TEXT NOT NULL REFERENCES agents(id),
		content TEXT NOT NULL,
		mentions TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS squad_chat (
		id TEXT PRIMARY KEY,
		from_agent_id TEXT REFERENCES agents(id),
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		mentioned_agent_id TEXT NOT NULL REFERENCES agents(id),
		from_agent_id TEXT REFERENCES agents(id),
		task_id TEXT REFERENCES tasks(id),
		content TEXT NOT NULL,
		delivered INTEGER NOT NULL DEFAULT 0,
		priority TEXT NOT NULL DEFAULT 'normal' CHECK(priority IN ('normal','high')),
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL CHECK(type IN ('task_created','task_updated','message_sent','document_created','agent_heartbeat','status_change')),
		agent_id TEXT REFERENCES agents(id),
		task_id TEXT REFERENCES tasks(id),
		message TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		type TEXT NOT NULL CHECK(type IN ('deliverable','research','protocol','note')),
		task_id TEXT REFERENCES tasks(id),
		created_by TEXT REFERENCES agents(id),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agents_session_key ON agents(session_key);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_task ON messages(task_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_squad_chat_created ON squad_chat(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_notifications_agent_delivered ON notifications(mentioned_agent_id, delivered);
	CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_activities_created ON activities(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_documents_task ON documents(task_id);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);
	`
	_, err := db.Exec(schema)
	return err
}
