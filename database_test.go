package main

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInitDBPragmas(t *testing.T) {
	db := newTestDB(t)

	var timeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatal(err)
	}
	if timeout <= 0 {
		t.Errorf("busy_timeout = %d, want a positive wait so concurrent writers block instead of failing", timeout)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Error("foreign_keys not enabled")
	}
}

func TestConcurrentWritesDoNotFail(t *testing.T) {
	db := newTestDB(t)

	agent := mustAgent(t, db, RegisterAgentParams{Name: "Alice", Role: "backend dev"})

	// Heartbeat bumps run out of band in the auth middleware; interleave them
	// with real mutations and require that neither side ever errors.
	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := db.Exec("UPDATE agents SET last_heartbeat = ? WHERE id = ?", millis(time.Now()), agent.ID); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := PostSquadChat(context.Background(), db, testConfig, agent.ID, "status update"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent write failed: %v", err)
	}
}
