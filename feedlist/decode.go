package feedlist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"preader/models"
)

var ErrMissingField = errors.New("missing field")

// DecodeError reports a feed list that does not have the expected shape.
// Index is -1 when the document as a whole is malformed.
type DecodeError struct {
	Index int
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed feed list: %v", e.Err)
	}
	return fmt.Sprintf("malformed feed list item %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type rawItem struct {
	PK     json.RawMessage `json:"pk"`
	Fields *struct {
		Title *string `json:"title"`
	} `json:"fields"`
}

// Decode parses a feed list document into validated items
func Decode(data []byte) ([]models.FeedItem, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &DecodeError{Index: -1, Err: errors.New("expected a JSON array")}
	}

	var raw []rawItem
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &DecodeError{Index: -1, Err: err}
	}

	items := make([]models.FeedItem, 0, len(raw))
	for i, r := range raw {
		pk, err := decodePK(r.PK)
		if err != nil {
			return nil, &DecodeError{Index: i, Field: "pk", Err: err}
		}
		if r.Fields == nil {
			return nil, &DecodeError{Index: i, Field: "fields", Err: ErrMissingField}
		}
		if r.Fields.Title == nil {
			return nil, &DecodeError{Index: i, Field: "fields.title", Err: ErrMissingField}
		}
		items = append(items, models.FeedItem{PK: pk, Title: *r.Fields.Title})
	}

	return items, nil
}

// decodePK accepts a JSON number or a non-empty JSON string
func decodePK(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ErrMissingField
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		if s == "" {
			return "", ErrMissingField
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected number or string, got %s", raw)
	}
	return n.String(), nil
}
