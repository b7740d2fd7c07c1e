package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// apiError is the error document returned by the node.
type apiError struct {
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
}

func get(url string, expStatus int, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, expStatus, v)
}

func post(url string, body any, expStatus int, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, expStatus, v)
}

func decode(resp *http.Response, expStatus int, v any) error {
	if resp.StatusCode != expStatus {
		var ae apiError
		if err := json.NewDecoder(resp.Body).Decode(&ae); err != nil {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("status %d: %s [traceid %s]", resp.StatusCode, ae.Error, ae.TraceID)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
