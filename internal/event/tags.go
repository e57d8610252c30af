package event

// Tag is one tag sequence: a name followed by positional parameters
// (value, relay hint, marker, ...).
type Tag []string

// Name returns the tag name, or "" for an empty tag.
func (t Tag) Name() string {
	return t.At(0)
}

// Value returns the first positional parameter, or "".
func (t Tag) Value() string {
	return t.At(1)
}

// At returns element i, or "" when the tag is shorter.
func (t Tag) At(i int) string {
	if i < 0 || i >= len(t) {
		return ""
	}
	return t[i]
}

// Tags is the ordered tag list of an event. Order is significant for
// identity and is never changed by this package.
type Tags []Tag

// Find returns the first tag named name, or nil.
func (ts Tags) Find(name string) Tag {
	for _, t := range ts {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// FindAll returns every tag named name, in order.
func (ts Tags) FindAll(name string) Tags {
	var out Tags
	for _, t := range ts {
		if t.Name() == name {
			out = append(out, t)
		}
	}
	return out
}

// Values returns the Value of every tag named name, in order.
func (ts Tags) Values(name string) []string {
	var out []string
	for _, t := range ts {
		if t.Name() == name {
			out = append(out, t.Value())
		}
	}
	return out
}

// Clone returns a deep copy so callers cannot alias an event's tags.
func (ts Tags) Clone() Tags {
	if ts == nil {
		return nil
	}
	out := make(Tags, len(ts))
	for i, t := range ts {
		out[i] = append(Tag(nil), t...)
	}
	return out
}
