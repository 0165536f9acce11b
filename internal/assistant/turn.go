package assistant

// ActionKind names a side effect the caller performs after a turn.
type ActionKind string

const (
	ActionNavigate       ActionKind = "navigate"
	ActionDeepLink       ActionKind = "deepLink"
	ActionCreateBooking  ActionKind = "createBooking"
	ActionCreateReminder ActionKind = "createReminder"
	ActionCreateTicket   ActionKind = "createTicket"
	ActionCastVote       ActionKind = "castVote"
)

// Action is a serializable request for the caller. The core never executes it.
type Action struct {
	Kind    ActionKind     `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// TurnResult is everything one turn produces.
type TurnResult struct {
	Reply  string        `json:"replyText"`
	Intent string        `json:"intent"`
	Action *Action       `json:"action,omitempty"`
	Patch  *ContextPatch `json:"contextPatch,omitempty"`
	Reset  bool          `json:"reset,omitempty"`
}

// String returns the string stored under key.
func (a Action) String(key string) (string, bool) {
	s, ok := a.Payload[key].(string)
	return s, ok
}

// Uint returns the numeric value stored under key. Values that went through
// JSON come back as float64 and are accepted when they are whole and positive.
func (a Action) Uint(key string) (uint64, bool) {
	switch v := a.Payload[key].(type) {
	case uint64:
		return v, true
	case int:
		if v >= 0 {
			return uint64(v), true
		}
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	case float64:
		if v >= 0 && v == float64(uint64(v)) {
			return uint64(v), true
		}
	}
	return 0, false
}

// Int is Uint for small signed values such as minutes or stars.
func (a Action) Int(key string) (int, bool) {
	switch v := a.Payload[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// Strings returns the string list stored under key.
func (a Action) Strings(key string) ([]string, bool) {
	switch v := a.Payload[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
