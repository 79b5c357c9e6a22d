package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/auth"
	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/rest"
	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

type Deps struct {
	Tasks   rest.Tasks
	Auth    auth.Authenticator
	Pingers map[string]core.Pinger
}

func Register(mux *http.ServeMux, log *slog.Logger, deps Deps, timeout time.Duration) {
	protect := auth.Middleware(log, deps.Auth)

	pingers := deps.Pingers
	if pingers == nil {
		pingers = map[string]core.Pinger{"tasks": deps.Tasks}
	}

	// ping
	mux.Handle("GET /api/ping", NewPingHandler(log, pingers, timeout))

	// tasks
	mux.Handle("POST /api/tasks", protect(NewCreateTaskHandler(log, deps.Tasks, timeout)))
	mux.Handle("GET /api/tasks", protect(NewListTasksHandler(log, deps.Tasks, timeout)))
	mux.Handle("GET /api/tasks/{id}", protect(NewGetTaskHandler(log, deps.Tasks, timeout)))
	mux.Handle("PUT /api/tasks/{id}", protect(NewUpdateTaskHandler(log, deps.Tasks, timeout)))
	mux.Handle("PATCH /api/tasks/{id}/status", protect(NewSetStatusHandler(log, deps.Tasks, timeout)))
	mux.Handle("DELETE /api/tasks/{id}", protect(NewDeleteTaskHandler(log, deps.Tasks, timeout)))

	// reminders
	mux.Handle("POST /api/tasks/{id}/reminders", protect(NewScheduleReminderHandler(log, deps.Tasks, timeout)))
	mux.Handle("GET /api/tasks/{id}/reminders", protect(NewListRemindersHandler(log, deps.Tasks, timeout)))

	// contact
	mux.Handle("PUT /api/me/contact", protect(NewSetContactHandler(log, deps.Tasks, timeout)))
	mux.Handle("GET /api/me/contact", protect(NewGetContactHandler(log, deps.Tasks, timeout)))
}
