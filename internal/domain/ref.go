package domain

// TaskRef identifies a task inside a schedule proposal. A persisted ref
// points at an existing task row; a draft ref is a client-local
// placeholder whose key is never treated as a storage id. Using a tagged
// type instead of sniffing string prefixes means a real id can never
// collide with the placeholder convention.
type TaskRef struct {
	id    string
	draft bool
}

// PersistedTask references an existing task by id.
func PersistedTask(id string) TaskRef {
	return TaskRef{id: id}
}

// DraftTask references an unsaved task by a client-local key.
func DraftTask(localKey string) TaskRef {
	return TaskRef{id: localKey, draft: true}
}

// NoTask is the zero ref: no id supplied at all.
func NoTask() TaskRef { return TaskRef{} }

// PersistedID returns the task id and true when the ref points at a
// stored task. Draft and zero refs return false.
func (r TaskRef) PersistedID() (string, bool) {
	if r.draft || r.id == "" {
		return "", false
	}
	return r.id, true
}

// IsDraft reports whether the ref is a client-local placeholder.
func (r TaskRef) IsDraft() bool { return r.draft }

// LocalKey returns the draft key, empty for persisted and zero refs.
func (r TaskRef) LocalKey() string {
	if !r.draft {
		return ""
	}
	return r.id
}
