// Package notify delivers operational alerts to humans.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

type SlackNotifier struct {
	SlackWebhookURL string
	Client          *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Notify sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) Notify(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

// FailureAlert formats the message sent when a channel keeps failing.
func FailureAlert(channel, kind string, count, sources int, lastErr string) string {
	msg := "⚠️ Censor Failure Alarm ⚠️\n"
	msg += fmt.Sprintf("Channel `%s` failed with `%s` errors %d times this hour", channel, kind, count)
	if sources > 0 {
		msg += fmt.Sprintf(" (%d distinct sources)", sources)
	}
	msg += "\n"
	if lastErr != "" {
		msg += fmt.Sprintf("Last error: `%s`\n", lastErr)
	}
	msg += "Results on this channel are degrading to review.\n"
	return msg
}
