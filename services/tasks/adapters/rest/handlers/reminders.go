package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/auth"
	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/rest"
	"github.com/Rajvira10/todoist-netlify/services/tasks/pkg/res"
)

func NewScheduleReminderHandler(log *slog.Logger, svc rest.Tasks, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in rest.ReminderIn
		if !decode(w, r, &in) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		rem, err := svc.ScheduleReminder(ctx, auth.OwnerFrom(ctx), r.PathValue("id"), in.Date, in.Time)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		log.Debug("reminder scheduled", "reminder_id", rem.ID, "task_id", rem.TaskID, "fire_at", rem.FireAt)
		res.Json(w, rest.NewReminderOut(rem), http.StatusCreated)
	}
}

func NewListRemindersHandler(_ *slog.Logger, svc rest.Tasks, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		items, err := svc.ListReminders(ctx, auth.OwnerFrom(ctx), r.PathValue("id"))
		if err != nil {
			rest.WriteErr(w, err)
			return
		}

		out := make([]rest.ReminderOut, 0, len(items))
		for _, it := range items {
			out = append(out, rest.NewReminderOut(it))
		}
		res.Json(w, map[string]any{"reminders": out}, http.StatusOK)
	}
}
