package core

// ListTasksFilter narrows an owner's task list. A nil Status lists every
// status; a zero Limit lists everything after Offset.
type ListTasksFilter struct {
	Status *TaskStatus `json:"status"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// MaxListLimit caps a single page.
const MaxListLimit = 500

func (f ListTasksFilter) validate() error {
	if f.Status != nil && !f.Status.Valid() {
		return fieldErr("status", ErrInvalidStatus)
	}
	if f.Limit < 0 || f.Limit > MaxListLimit {
		return fieldErr("limit", ErrInvalidInput)
	}
	if f.Offset < 0 {
		return fieldErr("offset", ErrInvalidInput)
	}
	return nil
}
