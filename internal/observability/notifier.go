package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Notifier delivers triggered alerts to an external channel.
type Notifier interface {
	Notify(alerts []Alert) error
}

// slackNotifier posts an alert digest to a Slack incoming webhook.
type slackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Notifier posting to the given Slack webhook URL.
func NewSlackNotifier(webhookURL string) Notifier {
	return &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify sends one digest message covering all triggered alerts. An empty
// slice sends nothing.
func (s *slackNotifier) Notify(alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(buildDigest(alerts))
	if err != nil {
		return fmt.Errorf("marshaling slack digest: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// buildDigest renders the alerts as a single message: a header, one section
// per alert naming the condition that fired, and a closing count line.
func buildDigest(alerts []Alert) slackMessage {
	blocks := make([]slackBlock, 0, len(alerts)+2)
	blocks = append(blocks, slackBlock{
		Type: "header",
		Text: &slackText{Type: "plain_text", Text: "Forest needs attention"},
	})

	for _, alert := range alerts {
		text := fmt.Sprintf("%s *%s* [%s]\n%s\n_triggered %s_",
			severityEmoji(alert.Severity),
			alert.Condition,
			strings.ToUpper(string(alert.Severity)),
			alert.Message,
			alert.TriggeredAt.Format("2006-01-02 15:04 UTC"),
		)
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: text},
		})
	}

	blocks = append(blocks, slackBlock{
		Type: "section",
		Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("%d condition(s) firing", len(alerts))},
	})
	return slackMessage{Blocks: blocks}
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "\U0001f534"
	case SeverityMedium:
		return "\U0001f7e1"
	case SeverityLow:
		return "\U0001f535"
	default:
		return "⚪"
	}
}
