package main

import (
	"context"
	"database/sql"
	"fmt"
)

// GetAgentBriefing assembles the read-only wake-up snapshot for one agent:
// undelivered notifications, the last 20 squad-chat entries in chronological
// order, every task that is not done, the agent's own tasks, the last 10
// activities, and an ID-to-name lookup for all agents.
func GetAgentBriefing(ctx context.Context, db *sql.DB, agentID string) (*Briefing, error) {
	if _, err := getAgent(ctx, db, agentID); err != nil {
		return nil, err
	}

	notifications, err := listUndeliveredNotifications(ctx, db, agentID)
	if err != nil {
		return nil, err
	}

	recentChat, err := ListSquadChat(ctx, db, 20)
	if err != nil {
		return nil, err
	}
	// Fetched newest-first; flip to chronological for reading order.
	for i, j := 0, len(recentChat)-1; i < j; i, j = i+1, j-1 {
		recentChat[i], recentChat[j] = recentChat[j], recentChat[i]
	}

	allTasks, err := ListTasks(ctx, db, "")
	if err != nil {
		return nil, err
	}
	activeTasks := []Task{}
	myTasks := []Task{}
	for _, t := range allTasks {
		if t.Status != "done" {
			activeTasks = append(activeTasks, t)
		}
		for _, assignee := range t.AssigneeIDs {
			if assignee == agentID {
				myTasks = append(myTasks, t)
				break
			}
		}
	}

	recentActivity, err := ListActivities(ctx, db, 10)
	if err != nil {
		return nil, err
	}

	agents, err := listAgents(ctx, db)
	if err != nil {
		return nil, err
	}
	agentNames := make(map[string]string, len(agents))
	for _, a := range agents {
		agentNames[a.ID] = a.Name
	}

	return &Briefing{
		Notifications:  notifications,
		RecentChat:     recentChat,
		ActiveTasks:    activeTasks,
		MyTasks:        myTasks,
		RecentActivity: recentActivity,
		AgentNames:     agentNames,
	}, nil
}

// ClearNotifications marks every undelivered notification for the agent as
// delivered and returns how many were cleared. Running it again with nothing
// new pending clears zero.
func ClearNotifications(ctx context.Context, db *sql.DB, agentID string) (int, error) {
	if _, err := getAgent(ctx, db, agentID); err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE notifications SET delivered = 1 WHERE mentioned_agent_id = ? AND delivered = 0`, agentID)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func listUndeliveredNotifications(ctx context.Context, q querier, agentID string) ([]Notification, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, mentioned_agent_id, from_agent_id, task_id, content, delivered, priority, created_at
		 FROM notifications WHERE mentioned_agent_id = ? AND delivered = 0 ORDER BY created_at, id`, agentID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
