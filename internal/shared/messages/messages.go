package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Messages struct {
	ConnectionConfirmed MessageText `json:"connection_confirmed"`
	FirstConnection     MessageText `json:"first_connection"`
	ConnectionError     MessageText `json:"connection_error"`
}

var (
	loaded   Messages
	loadOnce sync.Once
	loadErr  error
)

// Load reads the notifications JSON file and caches the result.
// Safe to call from multiple goroutines.
func Load(path string) (*Messages, error) {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read messages file: %w", err)
			return
		}
		if err := json.Unmarshal(data, &loaded); err != nil {
			loadErr = fmt.Errorf("failed to parse messages file: %w", err)
		}
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return &loaded, nil
}

// Defaults returns the built-in notification texts, used when no messages
// file is configured.
func Defaults() *Messages {
	return &Messages{
		ConnectionConfirmed: MessageText{
			Title: "Bank connected",
			Body:  "%s is now linked to your account.",
		},
		FirstConnection: MessageText{
			Title: "Your first bank is connected",
			Body:  "%s is linked. Your transactions will start syncing shortly.",
		},
		ConnectionError: MessageText{
			Title: "Bank connection needs attention",
			Body:  "We lost access to %s. Please reconnect to keep syncing.",
		},
	}
}
