package main

import (
	"bytes"
	"database/sql"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
)

// templateFuncs provides helper functions available in all dashboard pages.
var templateFuncs = template.FuncMap{
	"renderMarkdown": renderMarkdown,
	"excerpt":        excerpt,
	"timeAgo":        timeAgo,
	"deref": func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	},
}

var (
	feedTemplate     = template.Must(template.New("feed").Funcs(templateFuncs).Parse(dashboardLayout + feedPage))
	taskTemplate     = template.Must(template.New("task").Funcs(templateFuncs).Parse(dashboardLayout + taskPage))
	documentTemplate = template.Must(template.New("document").Funcs(templateFuncs).Parse(dashboardLayout + documentPage))
)

// renderMarkdown converts a markdown string to HTML.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// timeAgo renders a relative timestamp; pointers may be nil.
func timeAgo(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		return humanize.Time(t)
	case *time.Time:
		if t == nil {
			return "never"
		}
		return humanize.Time(*t)
	}
	return ""
}

// excerpt shortens a string to n characters, adding "..." if truncated.
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		log.Printf("template error: %v", err)
		http.Error(w, "template rendering error", http.StatusInternalServerError)
	}
}

// handleDashboardFeed shows recent activity, squad chat, and open tasks.
func handleDashboardFeed(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	activities, err := ListActivities(ctx, db, 50)
	if err != nil {
		http.Error(w, "failed to load activities", http.StatusInternalServerError)
		return
	}
	chat, err := ListSquadChat(ctx, db, 20)
	if err != nil {
		http.Error(w, "failed to load squad chat", http.StatusInternalServerError)
		return
	}
	tasks, err := ListTasks(ctx, db, "")
	if err != nil {
		http.Error(w, "failed to load tasks", http.StatusInternalServerError)
		return
	}
	openTasks := []Task{}
	for _, t := range tasks {
		if t.Status != "done" {
			openTasks = append(openTasks, t)
		}
	}
	agents, err := listAgents(ctx, db)
	if err != nil {
		http.Error(w, "failed to load agents", http.StatusInternalServerError)
		return
	}
	names := make(map[string]string, len(agents))
	for _, a := range agents {
		names[a.ID] = a.Name
	}

	renderPage(w, feedTemplate, map[string]interface{}{
		"Title":      "Mission Control",
		"Activities": activities,
		"Chat":       chat,
		"Tasks":      openTasks,
		"Agents":     agents,
		"Names":      names,
	})
}

// handleDashboardTask shows one task with its messages and documents.
func handleDashboardTask(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	task, err := GetTaskByID(ctx, db, r.PathValue("id"))
	if err != nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	messages, err := ListTaskMessages(ctx, db, task.ID)
	if err != nil {
		http.Error(w, "failed to load messages", http.StatusInternalServerError)
		return
	}
	documents, err := ListDocuments(ctx, db, task.ID)
	if err != nil {
		http.Error(w, "failed to load documents", http.StatusInternalServerError)
		return
	}
	agents, err := listAgents(ctx, db)
	if err != nil {
		http.Error(w, "failed to load agents", http.StatusInternalServerError)
		return
	}
	names := make(map[string]string, len(agents))
	for _, a := range agents {
		names[a.ID] = a.Name
	}

	renderPage(w, taskTemplate, map[string]interface{}{
		"Title":     task.Title,
		"Task":      task,
		"Messages":  messages,
		"Documents": documents,
		"Names":     names,
	})
}

// handleDashboardDocument renders one document's markdown content.
func handleDashboardDocument(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	doc, err := GetDocumentByID(r.Context(), db, r.PathValue("id"))
	if err != nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	renderPage(w, documentTemplate, map[string]interface{}{
		"Title":    doc.Title,
		"Document": doc,
	})
}

const dashboardLayout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 0 auto; max-width: 960px; padding: 1rem; color: #222; }
h1, h2 { border-bottom: 1px solid #ddd; padding-bottom: .3rem; }
.meta { color: #777; font-size: .85rem; }
.card { border: 1px solid #e0e0e0; border-radius: 6px; padding: .6rem .8rem; margin: .5rem 0; }
.status { display: inline-block; padding: .1rem .5rem; border-radius: 4px; background: #eef; font-size: .8rem; }
a { color: #246; }
</style>
</head>
<body>
<p><a href="/dashboard">Mission Control</a></p>
{{template "content" .}}
</body>
</html>{{end}}`

const feedPage = `{{define "content"}}
<h1>{{.Title}}</h1>

<h2>Open Tasks</h2>
{{range .Tasks}}
<div class="card">
  <a href="/dashboard/tasks/{{.ID}}"><strong>{{.Title}}</strong></a>
  <span class="status">{{.Status}}</span>
  {{if .Priority}}<span class="status">{{.Priority}}</span>{{end}}
  <div class="meta">updated {{timeAgo .UpdatedAt}}</div>
</div>
{{else}}<p class="meta">No open tasks.</p>{{end}}

<h2>Squad Chat</h2>
{{range .Chat}}
<div class="card">
  <strong>{{if .FromAgentID}}{{index $.Names (deref .FromAgentID)}}{{else}}System{{end}}</strong>
  <span class="meta">{{timeAgo .CreatedAt}}</span>
  <div>{{excerpt .Content 200}}</div>
</div>
{{else}}<p class="meta">Quiet in here.</p>{{end}}

<h2>Recent Activity</h2>
{{range .Activities}}
<div class="card">
  {{.Message}}
  <span class="meta">{{.Type}} &middot; {{timeAgo .CreatedAt}}</span>
</div>
{{else}}<p class="meta">Nothing yet.</p>{{end}}
{{end}}`

const taskPage = `{{define "content"}}
<h1>{{.Task.Title}}</h1>
<p><span class="status">{{.Task.Status}}</span>
{{if .Task.Priority}}<span class="status">{{.Task.Priority}}</span>{{end}}</p>
<div>{{renderMarkdown .Task.Description}}</div>

<h2>Documents</h2>
{{range .Documents}}
<div class="card">
  <a href="/dashboard/documents/{{.ID}}">{{.Title}}</a>
  <span class="status">{{.Type}}</span>
</div>
{{else}}<p class="meta">No documents.</p>{{end}}

<h2>Messages</h2>
{{range .Messages}}
<div class="card">
  <strong>{{index $.Names .FromAgentID}}</strong>
  <span class="meta">{{timeAgo .CreatedAt}}</span>
  <div>{{.Content}}</div>
</div>
{{else}}<p class="meta">No messages.</p>{{end}}
{{end}}`

const documentPage = `{{define "content"}}
<h1>{{.Document.Title}}</h1>
<p class="meta">{{.Document.Type}} &middot; updated {{timeAgo .Document.UpdatedAt}}</p>
<div>{{renderMarkdown .Document.Content}}</div>
{{end}}`
