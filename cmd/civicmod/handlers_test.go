package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/civictrack/civictrack/automod/engine"
	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/standing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *Server {
	eng, _, _ := engine.EngineTestFixture()
	return newServerForEngine(eng, Config{
		Logger:     slog.Default(),
		Registerer: prometheus.NewRegistry(),
	})
}

func doRequest(srv *Server, method, path, body, moderator string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if moderator != "" {
		req.Header.Set(moderatorHeader, moderator)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndReasons(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doRequest(srv, http.MethodGet, "/_health", "", "")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("ok", decode[GenericStatus](t, rec).Status)

	rec = doRequest(srv, http.MethodGet, "/flag-reasons", "", "")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Len(decode[[]moderation.FlagReason](t, rec), len(moderation.FlagReasons))
}

func TestContentRoutes(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	sub := `{"contentId":"c1","title":"Broken water main","description":"Water has been flooding 5th Avenue since this morning.","submitterId":"author"}`
	rec := doRequest(srv, http.MethodPost, "/content", sub, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(decode[moderation.Status](t, rec).IsHidden)

	rec = doRequest(srv, http.MethodPost, "/content", sub, "")
	assert.Equal(http.StatusConflict, rec.Code)
	assert.Equal("conflict", decode[GenericError](t, rec).Error)

	rec = doRequest(srv, http.MethodGet, "/content/missing", "", "")
	assert.Equal(http.StatusNotFound, rec.Code)

	for _, u := range []string{"u1", "u2", "u3"} {
		rec = doRequest(srv, http.MethodPost, "/content/c1/flag", `{"userId":"`+u+`","reason":"spam"}`, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	st := decode[moderation.Status](t, rec)
	assert.True(st.IsHidden)
	assert.Equal(3, st.FlagCount)

	rec = doRequest(srv, http.MethodPost, "/content/c1/flag", `{"reason":"spam"}`, "")
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/content?index=hidden", "", "")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Len(decode[[]moderation.Status](t, rec), 1)

	rec = doRequest(srv, http.MethodGet, "/content?index=everything", "", "")
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/content/c1/unflag", `{"userId":"u3"}`, "")
	assert.Equal(http.StatusOK, rec.Code)
	assert.False(decode[moderation.Status](t, rec).IsHidden)
}

func TestModeratorRoutes(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	sub := `{"contentId":"c1","title":"Graffiti on the bridge","description":"Offensive graffiti was painted on the north side overnight.","submitterId":"author"}`
	rec := doRequest(srv, http.MethodPost, "/content", sub, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	body := `{"action":"remove","reason":"personal information"}`
	rec = doRequest(srv, http.MethodPost, "/content/c1/moderate", body, "")
	assert.Equal(http.StatusUnauthorized, rec.Code)
	rec = doRequest(srv, http.MethodPost, "/content/c1/moderate", body, "u1")
	assert.Equal(http.StatusForbidden, rec.Code)
	rec = doRequest(srv, http.MethodPost, "/content/c1/moderate", `{"action":"nuke","reason":"why not"}`, "mod1")
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/content/c1/moderate", body, "mod1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(decode[moderation.Status](t, rec).Removed)

	rec = doRequest(srv, http.MethodPost, "/content/c1/moderate", `{"action":"approve","reason":"oops"}`, "mod1")
	assert.Equal(http.StatusConflict, rec.Code)
	assert.Equal("invalid_transition", decode[GenericError](t, rec).Error)

	rec = doRequest(srv, http.MethodGet, "/stats", "", "mod1")
	assert.Equal(http.StatusOK, rec.Code)
	stats := decode[engine.Stats](t, rec)
	assert.Equal(1, stats.Content["removed"])

	rec = doRequest(srv, http.MethodGet, "/suggestions", "", "mod1")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("[]", strings.TrimSpace(rec.Body.String()))
}

func TestAccountRoutes(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doRequest(srv, http.MethodPost, "/accounts/u1", `{"verificationStatus":"verified"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(standing.Verified, decode[standing.Account](t, rec).VerificationStatus)
	rec = doRequest(srv, http.MethodPost, "/accounts/u1", `{}`, "")
	assert.Equal(http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/accounts/u1/suspend", `{"reason":"cool off","days":0}`, "mod1")
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/accounts/u1/ban", `{"reason":"spam ring"}`, "mod1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[StandingResponse](t, rec)
	assert.Equal(standing.Banned, resp.Account.Standing)
	require.NotNil(t, resp.Action)
	assert.Equal(standing.ActionBan, resp.Action.Kind)

	rec = doRequest(srv, http.MethodPost, "/accounts/u1/suspend", `{"reason":"cool off","days":3}`, "mod1")
	assert.Equal(http.StatusConflict, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/accounts/u1/can/report", "", "")
	assert.Equal(http.StatusOK, rec.Code)
	assert.False(decode[CanPerformResponse](t, rec).Allowed)

	// banned accounts can not submit
	sub := `{"contentId":"c9","title":"Street sign missing","description":"The stop sign at Oak and 3rd has been knocked down.","submitterId":"u1"}`
	rec = doRequest(srv, http.MethodPost, "/content", sub, "")
	assert.Equal(http.StatusForbidden, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/accounts/u1/history", "", "mod1")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Len(decode[[]standing.Action](t, rec), 1)

	rec = doRequest(srv, http.MethodGet, "/accounts?standing=banned", "", "mod1")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Len(decode[[]standing.Account](t, rec), 1)

	rec = doRequest(srv, http.MethodGet, "/accounts/nobody", "", "")
	assert.Equal(http.StatusNotFound, rec.Code)
}
