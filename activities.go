package main

import (
	"context"
	"database/sql"
	"fmt"
)

// ListActivities returns the audit trail, newest first. The default page
// size is 50.
func ListActivities(ctx context.Context, db *sql.DB, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, type, agent_id, task_id, message, created_at
		 FROM activities ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	activities := []Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
