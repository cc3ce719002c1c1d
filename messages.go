package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PostTaskMessage records a message on a task and fans out mention
// notifications in the same transaction. @all reaches every agent except the
// sender; a named mention reaches the matching agent unless it is the sender,
// at high priority when the mentioned name belongs to a lead. Tokens that
// resolve to nobody are ignored. Exactly one message_sent activity is logged
// no matter how many mentions the content carries.
func PostTaskMessage(ctx context.Context, db *sql.DB, cfg Config, taskID, fromAgentID, content string) (*Message, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := getTask(ctx, tx, taskID); err != nil {
		return nil, err
	}
	from, err := getAgent(ctx, tx, fromAgentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	id := newFeedID()
	mentions := parseMentions(content)

	var mentionsJSON interface{}
	if len(mentions) > 0 {
		mentionsJSON = toJSONList(mentions)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, task_id, from_agent_id, content, mentions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, taskID, fromAgentID, content, mentionsJSON, millis(now))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if len(mentions) > 0 {
		agents, err := listAgents(ctx, tx)
		if err != nil {
			return nil, err
		}
		preview := truncate(content, cfg.TaskMentionPreview)

		for _, mention := range mentions {
			name := strings.ToLower(strings.TrimPrefix(mention, "@"))

			if name == "all" {
				for _, agent := range agents {
					if agent.ID == fromAgentID {
						continue
					}
					err = insertNotification(ctx, tx, Notification{
						MentionedAgentID: agent.ID,
						FromAgentID:      &fromAgentID,
						TaskID:           &taskID,
						Content:          fmt.Sprintf("%s mentioned @all: %s", from.Name, preview),
						Priority:         "normal",
						CreatedAt:        now,
					})
					if err != nil {
						return nil, err
					}
				}
				continue
			}

			mentioned := resolveMention(agents, name, false)
			if mentioned == nil || mentioned.ID == fromAgentID {
				continue
			}
			priority := "normal"
			if mentioned.Level == "lead" {
				priority = "high"
			}
			err = insertNotification(ctx, tx, Notification{
				MentionedAgentID: mentioned.ID,
				FromAgentID:      &fromAgentID,
				TaskID:           &taskID,
				Content:          fmt.Sprintf("%s mentioned you: %s", from.Name, preview),
				Priority:         priority,
				CreatedAt:        now,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	err = insertActivity(ctx, tx, Activity{
		Type:      "message_sent",
		AgentID:   &fromAgentID,
		TaskID:    &taskID,
		Message:   fmt.Sprintf("%s commented on a task", from.Name),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Message{
		ID:          id,
		TaskID:      taskID,
		FromAgentID: fromAgentID,
		Content:     content,
		Mentions:    mentions,
		CreatedAt:   now,
	}, nil
}

// ListTaskMessages returns a task's messages in chronological order.
func ListTaskMessages(ctx context.Context, db *sql.DB, taskID string) ([]Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, task_id, from_agent_id, content, mentions, created_at
		 FROM messages WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// TaskMessageCounts returns the message count per task for the given IDs.
func TaskMessageCounts(ctx context.Context, db *sql.DB, taskIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(taskIDs))
	for _, taskID := range taskIDs {
		var n int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE task_id = ?`, taskID).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("count messages: %w", err)
		}
		counts[taskID] = n
	}
	return counts, nil
}
