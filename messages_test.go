package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPostTaskMessage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})
	bob := mustAgent(t, db, RegisterAgentParams{Name: "Bob", Role: "frontend dev"})
	task := mustTask(t, db, CreateTaskParams{Title: "Ship it"})

	msg, err := PostTaskMessage(ctx, db, testConfig, task.ID, alice.ID, "hey @Bob take a look")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"@Bob"}, msg.Mentions); diff != "" {
		t.Errorf("mentions mismatch (-want +got):\n%s", diff)
	}

	notifications := undelivered(t, db, bob.ID)
	if len(notifications) != 1 {
		t.Fatalf("bob got %d notifications, want 1", len(notifications))
	}
	want := "Alice mentioned you: hey @Bob take a look"
	if notifications[0].Content != want || notifications[0].Priority != "normal" {
		t.Errorf("notification = %+v, want content %q priority normal", notifications[0], want)
	}
	if notifications[0].TaskID == nil || *notifications[0].TaskID != task.ID {
		t.Errorf("notification not linked to task: %+v", notifications[0].TaskID)
	}

	activity := latestActivity(t, db)
	if activity.Type != "message_sent" || activity.Message != "Alice commented on a task" {
		t.Errorf("unexpected activity: %+v", activity)
	}

	stored, err := ListTaskMessages(ctx, db, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Content != "hey @Bob take a look" {
		t.Errorf("stored messages = %+v", stored)
	}
}

func TestPostTaskMessageAll(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})
	bob := mustAgent(t, db, RegisterAgentParams{Name: "Bob", Role: "frontend dev"})
	carol := mustAgent(t, db, RegisterAgentParams{Name: "Carol", Role: "designer", Level: "lead"})
	task := mustTask(t, db, CreateTaskParams{Title: "Ship it"})
	activitiesBefore := countActivities(t, db, "message_sent")

	long := "@all " + strings.Repeat("x", 150)
	if _, err := PostTaskMessage(ctx, db, testConfig, task.ID, alice.ID, long); err != nil {
		t.Fatal(err)
	}

	if got := undelivered(t, db, alice.ID); len(got) != 0 {
		t.Errorf("sender received %d notifications, want 0", len(got))
	}
	for _, agent := range []*Agent{bob, carol} {
		notifications := undelivered(t, db, agent.ID)
		if len(notifications) != 1 {
			t.Fatalf("%s got %d notifications, want 1", agent.Name, len(notifications))
		}
		// @all is always normal priority, even for leads, and the preview is
		// capped at the configured length.
		if notifications[0].Priority != "normal" {
			t.Errorf("%s priority = %s, want normal", agent.Name, notifications[0].Priority)
		}
		want := fmt.Sprintf("Alice mentioned @all: %s", long[:testConfig.TaskMentionPreview])
		if notifications[0].Content != want {
			t.Errorf("%s content = %q, want %q", agent.Name, notifications[0].Content, want)
		}
	}

	// One activity regardless of fan-out width.
	if got := countActivities(t, db, "message_sent"); got != activitiesBefore+1 {
		t.Errorf("message_sent activities = %d, want %d", got, activitiesBefore+1)
	}

	// "everyone" is not a broadcast token on task messages.
	if _, err := PostTaskMessage(ctx, db, testConfig, task.ID, alice.ID, "@everyone hello"); err != nil {
		t.Fatal(err)
	}
	if got := undelivered(t, db, bob.ID); len(got) != 1 {
		t.Errorf("@everyone fanned out on a task message: bob has %d notifications", len(got))
	}
}

func TestPostTaskMessageLeadPriority(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})
	carol := mustAgent(t, db, RegisterAgentParams{Name: "Carol", Role: "designer", Level: "lead"})
	task := mustTask(t, db, CreateTaskParams{Title: "Ship it"})

	if _, err := PostTaskMessage(ctx, db, testConfig, task.ID, alice.ID, "@carol thoughts?"); err != nil {
		t.Fatal(err)
	}
	notifications := undelivered(t, db, carol.ID)
	if len(notifications) != 1 || notifications[0].Priority != "high" {
		t.Fatalf("lead mention must be high priority, got %+v", notifications)
	}
}

func TestPostTaskMessageSelfAndUnknownMentions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})
	task := mustTask(t, db, CreateTaskParams{Title: "Ship it"})

	if _, err := PostTaskMessage(ctx, db, testConfig, task.ID, alice.ID, "note to @alice and @ghost"); err != nil {
		t.Fatal(err)
	}
	if got := countAllNotifications(t, db); got != 0 {
		t.Errorf("self/unresolved mentions produced %d notifications, want 0", got)
	}
}

func TestPostTaskMessageDuplicateMentions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})
	bob := mustAgent(t, db, RegisterAgentParams{Name: "Bob", Role: "frontend dev"})
	task := mustTask(t, db, CreateTaskParams{Title: "Ship it"})

	// Repeating a token repeats the notification; tokens are not deduplicated.
	if _, err := PostTaskMessage(ctx, db, testConfig, task.ID, alice.ID, "@bob @Bob ping"); err != nil {
		t.Fatal(err)
	}
	if got := undelivered(t, db, bob.ID); len(got) != 2 {
		t.Errorf("bob got %d notifications, want 2", len(got))
	}
}

func TestPostTaskMessageUnknownTask(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})
	_, err := PostTaskMessage(ctx, db, testConfig, "missing-task", alice.ID, "hello")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestTaskMessageCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})
	taskA := mustTask(t, db, CreateTaskParams{Title: "A"})
	taskB := mustTask(t, db, CreateTaskParams{Title: "B"})

	for i := 0; i < 3; i++ {
		if _, err := PostTaskMessage(ctx, db, testConfig, taskA.ID, alice.ID, "update"); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := TaskMessageCounts(ctx, db, []string{taskA.ID, taskB.ID})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int{taskA.ID: 3, taskB.ID: 0}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}
