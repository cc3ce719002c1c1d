package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// readJSON decodes a JSON request body into v.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeServiceError maps service-layer errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNoDeliverables):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func optionalID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// handleRegisterAgent registers a new agent. Unauthenticated: agents need an
// entry point before they hold a session key.
func handleRegisterAgent(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name        string `json:"name"`
		Role        string `json:"role"`
		Status      string `json:"status"`
		Level       string `json:"level"`
		SpecialRole string `json:"special_role"`
		SessionKey  string `json:"session_key"`
		Group       string `json:"group"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.Name == "" || input.Role == "" || input.SessionKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name, role and session_key are required"})
		return
	}
	if input.Status == "" {
		input.Status = "idle"
	}
	if input.Level == "" {
		input.Level = "specialist"
	}
	if !ValidAgentStatuses[input.Status] || !ValidAgentLevels[input.Level] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status or level"})
		return
	}
	if input.SpecialRole != "" && !ValidSpecialRoles[input.SpecialRole] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid special_role"})
		return
	}

	agent, err := RegisterAgent(r.Context(), db, RegisterAgentParams{
		Name:        input.Name,
		Role:        input.Role,
		Status:      input.Status,
		Level:       input.Level,
		SpecialRole: input.SpecialRole,
		SessionKey:  input.SessionKey,
		Group:       input.Group,
	})
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "agent name or session key already taken"})
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func handleListAgents(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	agents, err := ListAgentDirectory(r.Context(), db)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if agents == nil {
		agents = []Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func handleGetAgent(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	agent, err := GetAgentByID(r.Context(), db, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func handleUpdateAgentStatus(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var input struct {
		Status        string `json:"status"`
		CurrentTaskID string `json:"current_task_id"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if !ValidAgentStatuses[input.Status] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	err := UpdateAgentStatus(r.Context(), db, r.PathValue("id"), input.Status, optionalID(input.CurrentTaskID))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func handleHeartbeat(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	if err := Heartbeat(r.Context(), db, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func handleCreateTask(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Priority    string   `json:"priority"`
		CreatedBy   string   `json:"created_by"`
		AssigneeIDs []string `json:"assignee_ids"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if input.Priority != "" && !ValidTaskPriorities[input.Priority] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid priority"})
		return
	}

	task, err := CreateTask(r.Context(), db, CreateTaskParams{
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		CreatedBy:   optionalID(input.CreatedBy),
		AssigneeIDs: input.AssigneeIDs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func handleListTasks(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !ValidTaskStatuses[status] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}
	tasks, err := ListTasks(r.Context(), db, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func handleGetTask(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	task, err := GetTaskByID(r.Context(), db, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func handleUpdateTask(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Priority    *string `json:"priority"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.Title == nil && input.Description == nil && input.Priority == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no fields to update"})
		return
	}
	if input.Priority != nil && !ValidTaskPriorities[*input.Priority] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid priority"})
		return
	}

	err := UpdateTask(r.Context(), db, r.PathValue("id"), UpdateTaskParams{
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func handleAssignTask(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var input struct {
		AssigneeIDs []string `json:"assignee_ids"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	err := AssignTask(r.Context(), db, r.PathValue("id"), input.AssigneeIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleChangeTaskStatus performs the raw status mutation. Event fan-out is
// dispatched separately through the /events endpoints once this succeeds.
func handleChangeTaskStatus(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var input struct {
		Status string `json:"status"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if !ValidTaskStatuses[input.Status] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	err := ChangeTaskStatus(r.Context(), db, r.PathValue("id"), input.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func handleLinkDeliverable(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	err := LinkDeliverable(r.Context(), db, r.PathValue("id"), r.PathValue("docID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func handleUnlinkDeliverable(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	err := UnlinkDeliverable(r.Context(), db, r.PathValue("id"), r.PathValue("docID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func handleCreateTaskFromChat(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	agent := AgentFromContext(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var input struct {
		SquadChatID string   `json:"squad_chat_id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Priority    string   `json:"priority"`
		AssigneeIDs []string `json:"assignee_ids"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.SquadChatID == "" || input.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "squad_chat_id and title are required"})
		return
	}
	if input.Priority != "" && !ValidTaskPriorities[input.Priority] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid priority"})
		return
	}

	task, err := CreateTaskFromChat(r.Context(), db, CreateTaskFromChatParams{
		SquadChatID: input.SquadChatID,
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		CreatedBy:   agent.ID,
		AssigneeIDs: input.AssigneeIDs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func handleListTaskMessages(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	messages, err := ListTaskMessages(r.Context(), db, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func handlePostTaskMessage(db *sql.DB, cfg Config, w http.ResponseWriter, r *http.Request) {
	agent := AgentFromContext(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}

	msg, err := PostTaskMessage(r.Context(), db, cfg, r.PathValue("id"), agent.ID, input.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func handleMessageCounts(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var input struct {
		TaskIDs []string `json:"task_ids"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	counts, err := TaskMessageCounts(r.Context(), db, input.TaskIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func handleListSquadChat(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := ListSquadChat(r.Context(), db, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func handlePostSquadChat(db *sql.DB, cfg Config, w http.ResponseWriter, r *http.Request) {
	agent := AgentFromContext(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}

	entry, err := PostSquadChat(r.Context(), db, cfg, agent.ID, input.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func handleBroadcast(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	agent := AgentFromContext(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var input struct {
		Message string `json:"message"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	notified, err := SendBroadcast(r.Context(), db, agent.ID, input.Message)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"notified_count": notified})
}

// handleTaskCreatedEvent dispatches the task-created fan-out. Callers invoke
// it after the task insert has succeeded.
func handleTaskCreatedEvent(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var input struct {
		TaskID    string `json:"task_id"`
		CreatedBy string `json:"created_by"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.TaskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_id is required"})
		return
	}

	err := OnTaskCreated(r.Context(), db, input.TaskID, optionalID(input.CreatedBy))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleTaskStatusChangedEvent dispatches the status-change fan-out. Callers
// invoke it after ChangeTaskStatus has succeeded.
func handleTaskStatusChangedEvent(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var input struct {
		TaskID    string `json:"task_id"`
		OldStatus string `json:"old_status"`
		NewStatus string `json:"new_status"`
		ChangedBy string `json:"changed_by"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.TaskID == "" || input.NewStatus == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_id and new_status are required"})
		return
	}

	err := OnTaskStatusChanged(r.Context(), db, input.TaskID, input.OldStatus, input.NewStatus, optionalID(input.ChangedBy))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func handleBriefing(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	briefing, err := GetAgentBriefing(r.Context(), db, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, briefing)
}

func handleClearNotifications(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	cleared, err := ClearNotifications(r.Context(), db, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared_count": cleared})
}

func handleListActivities(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	activities, err := ListActivities(r.Context(), db, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func handleCreateDocument(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	agent := AgentFromContext(r.Context())
	if agent == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var input struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Type    string `json:"type"`
		TaskID  string `json:"task_id"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.Title == "" || !ValidDocumentTypes[input.Type] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and a valid type are required"})
		return
	}

	doc, err := CreateDocument(r.Context(), db, CreateDocumentParams{
		Title:     input.Title,
		Content:   input.Content,
		Type:      input.Type,
		TaskID:    optionalID(input.TaskID),
		CreatedBy: &agent.ID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func handleListDocuments(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	documents, err := ListDocuments(r.Context(), db, r.URL.Query().Get("task_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documents)
}

func handleGetDocument(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	doc, err := GetDocumentByID(r.Context(), db, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func handleUpdateDocument(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	}
	if err := readJSON(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if input.Title == nil && input.Content == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no fields to update"})
		return
	}

	err := UpdateDocument(r.Context(), db, r.PathValue("id"), UpdateDocumentParams{
		Title:   input.Title,
		Content: input.Content,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
