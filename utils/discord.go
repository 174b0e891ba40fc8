package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const discordTimeout = 5 * time.Second

// SendDiscordNotification posts content to a Discord channel through its
// webhook URL. Callers that do not care about delivery may ignore the error.
//
// Parameters:
//   - ctx: Context for cancellation; a 5 second timeout is applied on top
//   - webhook: The Discord webhook URL to POST to
//   - content: The message content
//
// Returns:
//   - An error if the request could not be built or sent, or Discord
//     answered with a non-2xx status
func SendDiscordNotification(ctx context.Context, webhook string, content string) error {
	data, err := json.Marshal(struct {
		Content string `json:"content"`
	}{Content: content})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, discordTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("send discord notification: %w", err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("discord webhook returned %s", resp.Status)
	}

	return nil
}
