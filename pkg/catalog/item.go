package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Item is one catalog record (product, category card, feed entry). The
// payload is kept verbatim; only the id is extracted for deduplication.
type Item struct {
	ID  string
	Raw json.RawMessage
}

// UnmarshalJSON keeps the raw bytes and pulls out an "id" field when the
// item is an object. Numeric and string ids are both accepted.
func (i *Item) UnmarshalJSON(data []byte) error {
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	i.Raw = raw
	i.ID = ""

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return err
	}
	i.ID = idString(probe.ID)
	return nil
}

// MarshalJSON writes the raw payload back unchanged.
func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.Raw) == 0 {
		return []byte("null"), nil
	}
	return i.Raw, nil
}

// Key identifies the item for deduplication.
func (i Item) Key() string {
	if i.ID != "" {
		return "id:" + i.ID
	}
	return "raw:" + string(bytes.TrimSpace(i.Raw))
}

func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		if s, err := strconv.Unquote(string(raw)); err == nil {
			return s
		}
	}
	return string(raw)
}
