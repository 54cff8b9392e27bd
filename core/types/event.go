package types

// Event is a structured record of a completed state transition. Attributes
// never carry secret material; they exist for external observers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a copy of the event whose attribute map is independent of
// the original.
func (e Event) Clone() Event {
	out := Event{Type: e.Type}
	if e.Attributes != nil {
		out.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}
