package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/standing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackNotifier(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var got []SlackWebhookBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body SlackWebhookBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		got = append(got, body)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := &SlackNotifier{SlackWebhookURL: srv.URL, ContentURLPrefix: "https://civictrack.example/issues/", Client: srv.Client()}
	st := moderation.Status{ContentID: "c1", SubmitterID: "author", FlagCount: 3, SpamScore: 1}
	act := moderation.Action{ContentID: "c1", ActorID: "system", Kind: moderation.ActionHide, Reason: "Auto-hidden: 3 flags"}
	require.NoError(t, n.SendContentAction(ctx, st, act))

	expires := FixtureTime.Add(72 * time.Hour)
	acct := standing.Account{ID: "u1", TrustScore: 90, VerificationStatus: standing.Blocked}
	sact := standing.Action{UserID: "u1", ModeratorID: "mod1", Kind: standing.ActionSuspend, Reason: "cooling off", DurationDays: 3, ExpiresAt: &expires}
	require.NoError(t, n.SendStandingAction(ctx, acct, sact))

	require.Len(t, got, 2)
	assert.Contains(got[0].Text, "<https://civictrack.example/issues/c1|view>")
	assert.Contains(got[0].Text, "Action: `hide` by `system`")
	assert.Contains(got[0].Text, "Flags: 3 / Spam score: 1")
	assert.Contains(got[1].Text, "`u1` / trust score 90")
	assert.Contains(got[1].Text, "(3 days)")
	assert.Contains(got[1].Text, "Reason: cooling off")
}

func TestSlackNotifierRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	n := &SlackNotifier{SlackWebhookURL: srv.URL, Client: srv.Client()}
	err := n.SendStandingAction(context.Background(), standing.Account{ID: "u1"}, standing.Action{Kind: standing.ActionBan, ModeratorID: "mod1"})
	assert.ErrorContains(t, err, "status=403")
}
