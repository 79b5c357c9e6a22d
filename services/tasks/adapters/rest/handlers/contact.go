package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/auth"
	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/rest"
	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
	"github.com/Rajvira10/todoist-netlify/services/tasks/pkg/res"
)

func NewSetContactHandler(_ *slog.Logger, svc rest.Tasks, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in rest.ContactIn
		if !decode(w, r, &in) {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := svc.SetContact(ctx, auth.OwnerFrom(ctx), in.Email); err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, map[string]string{"email": in.Email}, http.StatusOK)
	}
}

func NewGetContactHandler(_ *slog.Logger, svc rest.Tasks, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		addr, err := svc.Contact(ctx, auth.OwnerFrom(ctx))
		if errors.Is(err, core.ErrRecipientUnresolved) {
			res.Error(w, "contact not set", http.StatusNotFound)
			return
		}
		if err != nil {
			rest.WriteErr(w, err)
			return
		}
		res.Json(w, map[string]string{"email": addr}, http.StatusOK)
	}
}
