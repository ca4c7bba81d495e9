package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/standing"
	"github.com/civictrack/civictrack/pkg/robusthttp"
)

type SlackNotifier struct {
	SlackWebhookURL string
	// link prefix for content, eg "https://civictrack.example/issues/"; optional
	ContentURLPrefix string
	Client           *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		SlackWebhookURL: webhookURL,
		Client:          robusthttp.NewClient(),
	}
}

func (n *SlackNotifier) SendContentAction(ctx context.Context, st moderation.Status, act moderation.Action) error {
	return n.sendSlackMsg(ctx, contentSlackBody(st, act, n.ContentURLPrefix))
}

func (n *SlackNotifier) SendStandingAction(ctx context.Context, acct standing.Account, act standing.Action) error {
	return n.sendSlackMsg(ctx, standingSlackBody(acct, act))
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewReader(body))
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

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK || string(respBody) != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func contentSlackBody(st moderation.Status, act moderation.Action, urlPrefix string) string {
	var b strings.Builder
	b.WriteString("⚠️ Content Moderation Action ⚠️\n")
	if urlPrefix != "" {
		fmt.Fprintf(&b, "`%s` / <%s%s|view> / submitted by `%s`\n", st.ContentID, urlPrefix, st.ContentID, st.SubmitterID)
	} else {
		fmt.Fprintf(&b, "`%s` / submitted by `%s`\n", st.ContentID, st.SubmitterID)
	}
	fmt.Fprintf(&b, "Action: `%s` by `%s`", act.Kind, act.ActorID)
	if act.ModeratorID != "" {
		fmt.Fprintf(&b, " (moderator `%s`)", act.ModeratorID)
	}
	b.WriteString("\n")
	if act.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", act.Reason)
	}
	fmt.Fprintf(&b, "Flags: %d / Spam score: %d\n", st.FlagCount, st.SpamScore)
	return b.String()
}

func standingSlackBody(acct standing.Account, act standing.Action) string {
	var b strings.Builder
	b.WriteString("⚠️ Account Standing Action ⚠️\n")
	fmt.Fprintf(&b, "`%s` / trust score %d / %s\n", acct.ID, acct.TrustScore, acct.VerificationStatus)
	fmt.Fprintf(&b, "Action: `%s` by `%s`\n", act.Kind, act.ModeratorID)
	if act.ExpiresAt != nil {
		fmt.Fprintf(&b, "Until: %s (%d days)\n", act.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"), act.DurationDays)
	}
	if act.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", act.Reason)
	}
	return b.String()
}
