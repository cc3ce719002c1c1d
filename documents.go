package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CreateDocumentParams holds parameters for creating a document.
type CreateDocumentParams struct {
	Title     string
	Content   string
	Type      string
	TaskID    *string
	CreatedBy *string
}

// CreateDocument inserts a document and logs a document_created activity.
func CreateDocument(ctx context.Context, db *sql.DB, p CreateDocumentParams) (*Document, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	id := newEntityID()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, type, task_id, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Title, p.Content, p.Type, nullable(p.TaskID), nullable(p.CreatedBy), millis(now), millis(now))
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	creatorName := agentDisplayName(ctx, tx, p.CreatedBy, "Someone")
	err = insertActivity(ctx, tx, Activity{
		Type:      "document_created",
		AgentID:   p.CreatedBy,
		TaskID:    p.TaskID,
		Message:   fmt.Sprintf("%s created document: %s", creatorName, p.Title),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	doc, err := getDocument(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocumentParams holds optional field patches for a document.
type UpdateDocumentParams struct {
	Title   *string
	Content *string
}

// UpdateDocument patches a document. Last write wins.
func UpdateDocument(ctx context.Context, db *sql.DB, documentID string, p UpdateDocumentParams) error {
	var setClauses []string
	var args []interface{}
	if p.Title != nil {
		setClauses = append(setClauses, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Content != nil {
		setClauses = append(setClauses, "content = ?")
		args = append(args, *p.Content)
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, millis(time.Now()), documentID)

	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	return nil
}

// ListDocuments returns documents, optionally scoped to one task.
func ListDocuments(ctx context.Context, db *sql.DB, taskID string) ([]Document, error) {
	query := `SELECT id, title, content, type, task_id, created_by, created_at, updated_at
		FROM documents ORDER BY created_at DESC, id DESC`
	args := []interface{}{}
	if taskID != "" {
		query = `SELECT id, title, content, type, task_id, created_by, created_at, updated_at
			FROM documents WHERE task_id = ? ORDER BY created_at DESC, id DESC`
		args = append(args, taskID)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	documents := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, d)
	}
	return documents, rows.Err()
}

// GetDocumentByID looks up one document.
func GetDocumentByID(ctx context.Context, db *sql.DB, id string) (*Document, error) {
	return getDocument(ctx, db, id)
}
