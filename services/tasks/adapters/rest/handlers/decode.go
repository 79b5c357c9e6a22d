package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/rest"
	"github.com/Rajvira10/todoist-netlify/services/tasks/pkg/res"
)

const maxBody = 1 << 20

// decode reads a JSON body into in and validates it, writing the 400 itself
// when either step fails.
func decode(w http.ResponseWriter, r *http.Request, in any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(in); err != nil {
		res.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	if err := rest.Validate(in); err != nil {
		rest.WriteErr(w, err)
		return false
	}
	return true
}
