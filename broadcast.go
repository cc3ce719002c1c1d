package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SendBroadcast notifies every agent, the sender included, at high priority,
// logs one activity, and posts the announcement to squad chat. Returns the
// number of agents notified.
func SendBroadcast(ctx context.Context, db *sql.DB, fromAgentID, message string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	from, err := getAgent(ctx, tx, fromAgentID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	err = insertActivity(ctx, tx, Activity{
		Type:      "status_change",
		AgentID:   &fromAgentID,
		Message:   fmt.Sprintf("%s broadcast: %s", from.Name, message),
		CreatedAt: now,
	})
	if err != nil {
		return 0, err
	}

	agents, err := listAgents(ctx, tx)
	if err != nil {
		return 0, err
	}
	for _, agent := range agents {
		err = insertNotification(ctx, tx, Notification{
			MentionedAgentID: agent.ID,
			FromAgentID:      &fromAgentID,
			Content:          fmt.Sprintf("Broadcast from %s: %s", from.Name, message),
			Priority:         "high",
			CreatedAt:        now,
		})
		if err != nil {
			return 0, err
		}
	}

	_, err = insertSquadChat(ctx, tx, &fromAgentID, fmt.Sprintf("BROADCAST: %s", message), now)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(agents), nil
}
