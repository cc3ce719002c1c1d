package main

import (
	"database/sql"
	"html/template"
	"log"
	"net/http"
)

var (
	adminLoginTemplate = template.Must(template.New("admin-login").Parse(adminLoginPage))
	adminHomeTemplate  = template.Must(template.New("admin").Funcs(templateFuncs).Parse(dashboardLayout + adminHomePage))
)

func handleAdminLogin(cfg Config, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	adminLoginTemplate.Execute(w, nil)
}

func handleAdminLoginPost(cfg Config, w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	if r.FormValue("username") != cfg.AdminUser || !checkAdminPassword(cfg.AdminPass, r.FormValue("password")) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		adminLoginTemplate.Execute(w, map[string]string{"Error": "Invalid username or password."})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "admin_session",
		Value:    CreateSessionToken(cfg.SessionSecret),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func handleAdminDashboard(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	agents, err := ListAgentDirectory(r.Context(), db)
	if err != nil {
		http.Error(w, "failed to load agents", http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Title":  "Admin",
		"Agents": agents,
	}
	if key := r.URL.Query().Get("created_key"); key != "" {
		data["CreatedKey"] = key
	}
	renderPage(w, adminHomeTemplate, data)
}

// handleAdminCreateAgent registers an agent from the admin console and shows
// the generated session key once.
func handleAdminCreateAgent(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	name := r.FormValue("name")
	role := r.FormValue("role")
	level := r.FormValue("level")
	if level == "" {
		level = "specialist"
	}
	if name == "" || role == "" || !ValidAgentLevels[level] {
		http.Error(w, "name, role and a valid level are required", http.StatusBadRequest)
		return
	}

	sessionKey, err := generateSessionKey(name)
	if err != nil {
		http.Error(w, "failed to generate session key", http.StatusInternalServerError)
		return
	}

	_, err = RegisterAgent(r.Context(), db, RegisterAgentParams{
		Name:       name,
		Role:       role,
		Status:     "idle",
		Level:      level,
		SessionKey: sessionKey,
	})
	if err != nil {
		log.Printf("admin create agent: %v", err)
		http.Error(w, "agent name already taken", http.StatusConflict)
		return
	}

	http.Redirect(w, r, "/admin?created_key="+sessionKey, http.StatusSeeOther)
}

// handleAdminSetSpecialRole assigns or clears an agent's overseer/nagger
// role.
func handleAdminSetSpecialRole(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	role := r.FormValue("special_role")
	if role != "" && !ValidSpecialRoles[role] {
		http.Error(w, "invalid special_role", http.StatusBadRequest)
		return
	}

	var roleValue interface{}
	if role != "" {
		roleValue = role
	}
	res, err := db.ExecContext(r.Context(),
		`UPDATE agents SET special_role = ? WHERE id = ?`, roleValue, r.PathValue("id"))
	if err != nil {
		http.Error(w, "failed to update agent", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

const adminLoginPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Admin Login</title></head>
<body style="font-family: system-ui, sans-serif; max-width: 360px; margin: 4rem auto;">
<h1>Admin Login</h1>
{{if .Error}}<p style="color: #a00;">{{.Error}}</p>{{end}}
<form method="POST" action="/admin/login">
  <p><input name="username" placeholder="Username" autofocus></p>
  <p><input name="password" type="password" placeholder="Password"></p>
  <p><button type="submit">Log in</button></p>
</form>
</body>
</html>`

const adminHomePage = `{{define "content"}}
<h1>Admin</h1>

{{if .CreatedKey}}
<div class="card"><strong>Session key (shown once):</strong> <code>{{.CreatedKey}}</code></div>
{{end}}

<h2>Agents</h2>
{{range .Agents}}
<div class="card">
  <strong>{{.Name}}</strong> <span class="status">{{.Role}}</span>
  <span class="status">{{.Level}}</span>
  {{if .SpecialRole}}<span class="status">{{.SpecialRole}}</span>{{end}}
  {{if .LastHeartbeat}}<span class="meta">heartbeat {{timeAgo .LastHeartbeat}}</span>{{end}}
  <form method="POST" action="/admin/agents/{{.ID}}/role" style="display:inline">
    <select name="special_role">
      <option value="">no special role</option>
      <option value="overseer">overseer</option>
      <option value="nagger">nagger</option>
    </select>
    <button type="submit">Set</button>
  </form>
</div>
{{else}}<p class="meta">No agents yet.</p>{{end}}

<h2>New Agent</h2>
<form method="POST" action="/admin/agents">
  <p><input name="name" placeholder="Name"></p>
  <p><input name="role" placeholder="Role (e.g. overseer, qa, researcher)"></p>
  <p><select name="level">
    <option value="intern">intern</option>
    <option value="specialist" selected>specialist</option>
    <option value="lead">lead</option>
  </select></p>
  <p><button type="submit">Create</button></p>
</form>
{{end}}`
