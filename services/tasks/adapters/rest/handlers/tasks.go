package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/auth"
	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/rest"
	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
	"github.com/Rajvira10/todoist-netlify/services/tasks/pkg/res"
)

func NewCreateTaskHandler(log *slog.Logger, svc rest.Tasks, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in rest.TaskIn
		if !decode(w, r, &in) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := svc.CreateTask(ctx, auth.OwnerFrom(ctx), in.Input())
		if err != nil {
			log.Debug("create task failed", "error", err)
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, rest.NewTaskOut(t), http.StatusCreated)
	}
}

func NewGetTaskHandler(_ *slog.Logger, svc rest.Tasks, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := svc.GetTask(ctx, auth.OwnerFrom(ctx), r.PathValue("id"))
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, rest.NewTaskOut(t), http.StatusOK)
	}
}

func NewListTasksHandler(_ *slog.Logger, svc rest.Tasks, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := listFilter(r.URL.Query())
		if err != nil {
			rest.WriteErr(w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		items, err := svc.ListTasks(ctx, auth.OwnerFrom(ctx), f)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, map[string]any{"tasks": rest.NewTaskListOut(items)}, http.StatusOK)
	}
}

// listFilter reads ?status=&limit=&offset= from the query.
func listFilter(q url.Values) (core.ListTasksFilter, error) {
	var f core.ListTasksFilter

	if s := q.Get("status"); s != "" {
		st, err := core.ParseTaskStatus(s)
		if err != nil {
			return f, &core.FieldError{Field: "status", Err: core.ErrInvalidStatus}
		}
		f.Status = &st
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, &core.FieldError{Field: "limit", Err: core.ErrInvalidInput}
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, &core.FieldError{Field: "offset", Err: core.ErrInvalidInput}
		}
		f.Offset = n
	}
	return f, nil
}

func NewUpdateTaskHandler(log *slog.Logger, svc rest.Tasks, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in rest.TaskIn
		if !decode(w, r, &in) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := svc.UpdateTask(ctx, auth.OwnerFrom(ctx), r.PathValue("id"), in.Input())
		if err != nil {
			log.Debug("update task failed", "task_id", r.PathValue("id"), "error", err)
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, rest.NewTaskOut(t), http.StatusOK)
	}
}

func NewSetStatusHandler(_ *slog.Logger, svc rest.Tasks, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in rest.StatusIn
		if !decode(w, r, &in) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := svc.SetStatus(ctx, auth.OwnerFrom(ctx), r.PathValue("id"), in.Status)
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, rest.NewTaskOut(t), http.StatusOK)
	}
}

func NewDeleteTaskHandler(_ *slog.Logger, svc rest.Tasks, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := svc.DeleteTask(ctx, auth.OwnerFrom(ctx), r.PathValue("id")); err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.NoContent(w)
	}
}
