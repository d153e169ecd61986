// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package flowtable

import (
	"time"
)

// Match is a protocol-level selector (in_port, src, dst, ...). The table never
// interprets it; it is handed to the dispatcher verbatim.
type Match map[string]any

// Action is one forwarding action, e.g. {"type": "OUTPUT", "port": 2}.
type Action map[string]any

// Entry is a forwarding rule.
type Entry struct {
	ID        string         `json:"id"`
	Match     Match          `json:"match"`
	Actions   []Action       `json:"actions"`
	Priority  int            `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy so callers never share maps with the table.
func (e Entry) Clone() Entry {
	out := e
	out.Match = Match(cloneMap(e.Match))
	out.Metadata = cloneMap(e.Metadata)
	if e.Actions != nil {
		out.Actions = make([]Action, len(e.Actions))
		for i, a := range e.Actions {
			out.Actions[i] = Action(cloneMap(a))
		}
	}
	return out
}

func cloneMap[M ~map[string]any](m M) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case Match:
		return Match(cloneMap(val))
	case Action:
		return Action(cloneMap(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
