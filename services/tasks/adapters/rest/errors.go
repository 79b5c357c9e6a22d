package rest

import (
	"errors"
	"net/http"

	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
	"github.com/Rajvira10/todoist-netlify/services/tasks/pkg/res"
)

func WriteErr(w http.ResponseWriter, err error) {
	var fe *core.FieldError
	switch {
	case errors.As(err, &fe):
		res.FieldError(w, fe.Err.Error(), fe.Field, http.StatusBadRequest)
	case errors.Is(err, core.ErrUnauthorized):
		res.Error(w, core.ErrUnauthorized.Error(), http.StatusUnauthorized)
	case errors.Is(err, core.ErrNotFound):
		res.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrInvalidInput):
		res.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrDependency), errors.Is(err, core.ErrRecipientUnresolved):
		res.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		res.Error(w, "internal error", http.StatusInternalServerError)
	}
}
