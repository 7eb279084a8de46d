package variant

// additionals is an insertion-ordered set of named attachments carried by
// variants and products. The pricing engine never interprets the values; they
// ride along into the serialization view.
type additionals struct {
	keys   []string
	values map[string]any
}

// SetAdditional attaches arbitrary data under the given name, replacing an
// existing attachment of the same name without changing its position.
func (a *additionals) SetAdditional(key string, value any) {
	if a.values == nil {
		a.values = make(map[string]any)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Additional returns the attachment stored under key.
func (a *additionals) Additional(key string) (any, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Additionals returns all attachments in insertion order.
func (a *additionals) Additionals() []Additional {
	if len(a.keys) == 0 {
		return nil
	}
	out := make([]Additional, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, Additional{Key: k, Value: a.values[k]})
	}
	return out
}

// Additional is one named attachment.
type Additional struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}
