package store

import (
	"encoding/json"

	"github.com/linkforty/linkforty/internal/domain"
)

func marshalEvents(events []domain.EventType) (string, error) {
	raw, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalEvents(raw string) []domain.EventType {
	if raw == "" {
		return nil
	}
	var events []domain.EventType
	_ = json.Unmarshal([]byte(raw), &events)
	return events
}

func marshalHeaders(headers map[string]string) (string, error) {
	if headers == nil {
		return "", nil
	}
	raw, err := json.Marshal(headers)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var headers map[string]string
	_ = json.Unmarshal([]byte(raw), &headers)
	return headers
}
