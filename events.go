package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Task event dispatch: the entry points below fan one task event out into
// notifications, a squad-chat announcement, and (for status changes) an
// activity record, all inside a single transaction. Callers invoke them
// after the corresponding raw mutation has committed.

// OnTaskCreated notifies the overseer that a new task needs triage and
// announces the task on squad chat. Urgent tasks produce a high-priority
// notification. No overseer configured means the notification is skipped,
// not an error.
func OnTaskCreated(ctx context.Context, db *sql.DB, taskID string, createdBy *string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	task, err := getTask(ctx, tx, taskID)
	if err != nil {
		return err
	}
	agents, err := listAgents(ctx, tx)
	if err != nil {
		return err
	}

	now := time.Now()
	overseer := findOverseer(agents)
	createdByName := agentDisplayName(ctx, tx, createdBy, "Human")

	priorityLabel := task.Priority
	if priorityLabel == "" {
		priorityLabel = "no priority"
	}

	if overseer != nil {
		notifPriority := "normal"
		if task.Priority == "urgent" {
			notifPriority = "high"
		}
		err = insertNotification(ctx, tx, Notification{
			MentionedAgentID: overseer.ID,
			FromAgentID:      createdBy,
			TaskID:           &taskID,
			Content:          fmt.Sprintf("New task to triage: %q (%s) by %s", task.Title, priorityLabel, createdByName),
			Priority:         notifPriority,
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}
	}

	announceLabel := task.Priority
	if announceLabel == "" {
		announceLabel = "normal"
	}
	// Attribution falls back to the system actor (nil), never to an
	// arbitrary agent picked by scan order.
	_, err = insertSquadChat(ctx, tx, createdBy,
		fmt.Sprintf("[NEW TASK] %q - %s priority (by %s)", task.Title, announceLabel, createdByName), now)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// OnTaskStatusChanged fans a status change out to the overseer (always,
// unless they made the change), the nagger (review/done only, high
// priority), and every assignee except the changer (high priority when the
// task became blocked). It also announces the change on squad chat and logs
// one status_change activity.
func OnTaskStatusChanged(ctx context.Context, db *sql.DB, taskID, oldStatus, newStatus string, changedBy *string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	task, err := getTask(ctx, tx, taskID)
	if err != nil {
		return err
	}
	agents, err := listAgents(ctx, tx)
	if err != nil {
		return err
	}

	now := time.Now()
	overseer := findOverseer(agents)
	nagger := findNagger(agents)
	changedByName := agentDisplayName(ctx, tx, changedBy, "System")

	if overseer != nil && (changedBy == nil || overseer.ID != *changedBy) {
		err = insertNotification(ctx, tx, Notification{
			MentionedAgentID: overseer.ID,
			FromAgentID:      changedBy,
			TaskID:           &taskID,
			Content:          fmt.Sprintf("Task %q moved %s -> %s by %s", task.Title, oldStatus, newStatus, changedByName),
			Priority:         "normal",
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}
	}

	if nagger != nil && (newStatus == "review" || newStatus == "done") {
		err = insertNotification(ctx, tx, Notification{
			MentionedAgentID: nagger.ID,
			FromAgentID:      changedBy,
			TaskID:           &taskID,
			Content:          fmt.Sprintf("QA needed: %q is now %s. Review the deliverables.", task.Title, newStatus),
			Priority:         "high",
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}
	}

	assigneePriority := "normal"
	if newStatus == "blocked" {
		assigneePriority = "high"
	}
	for _, assigneeID := range task.AssigneeIDs {
		if changedBy != nil && assigneeID == *changedBy {
			continue
		}
		err = insertNotification(ctx, tx, Notification{
			MentionedAgentID: assigneeID,
			FromAgentID:      changedBy,
			TaskID:           &taskID,
			Content:          fmt.Sprintf("Task %q you're assigned to moved to %s", task.Title, newStatus),
			Priority:         assigneePriority,
			CreatedAt:        now,
		})
		if err != nil {
			return err
		}
	}

	_, err = insertSquadChat(ctx, tx, changedBy,
		fmt.Sprintf("[TASK UPDATE] %q -> %s (by %s)", task.Title, newStatus, changedByName), now)
	if err != nil {
		return err
	}

	err = insertActivity(ctx, tx, Activity{
		Type:      "status_change",
		AgentID:   changedBy,
		TaskID:    &taskID,
		Message:   fmt.Sprintf("Task %q moved %s -> %s by %s", task.Title, oldStatus, newStatus, changedByName),
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}
