package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/standing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testGormStore(t *testing.T) *GormStore {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqldb, err := db.DB()
	require.NoError(t, err)
	// each connection to ":memory:" is a separate database
	sqldb.SetMaxOpenConns(1)
	st, err := NewGormStore(db)
	require.NoError(t, err)
	return st
}

func testStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"mem":  NewMemStore(),
		"gorm": testGormStore(t),
	}
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestContentRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			_, err := st.LoadContent(ctx, "c1")
			assert.True(errors.Is(err, moderr.ErrNotFound))

			hiddenAt := testNow.Add(time.Minute)
			s := moderation.Status{
				ContentID:    "c1",
				SubmitterID:  "author",
				FlagCount:    1,
				FlaggedBy:    []principal.ID{"u1"},
				EverFlagged:  true,
				IsHidden:     true,
				HiddenAt:     &hiddenAt,
				HiddenReason: "Moderator action: off topic",
				HiddenBy:     moderation.HiddenByAdmin,
				SpamScore:    2,
				ReviewStatus: moderation.ReviewRejected,
				CreatedAt:    testNow,
				Actions: []moderation.Action{
					{ID: "a1", ContentID: "c1", ActorID: "u1", Kind: moderation.ActionFlag, Reason: "spam", Timestamp: testNow},
				},
			}
			assert.NoError(st.SaveContent(ctx, s))

			// append another entry, as a transition would
			s.Actions = append(s.Actions, moderation.Action{
				ID: "a2", ContentID: "c1", ActorID: principal.Admin, Kind: moderation.ActionHide,
				Reason: "off topic", ModeratorID: "mod1", Timestamp: hiddenAt,
			})
			assert.NoError(st.SaveContent(ctx, s))

			got, err := st.LoadContent(ctx, "c1")
			require.NoError(t, err)
			assert.Equal("c1", got.ContentID)
			assert.Equal(principal.ID("author"), got.SubmitterID)
			assert.Equal([]principal.ID{"u1"}, got.FlaggedBy)
			assert.True(got.EverFlagged)
			assert.True(got.IsHidden)
			require.NotNil(t, got.HiddenAt)
			assert.True(hiddenAt.Equal(*got.HiddenAt))
			assert.Equal(moderation.HiddenByAdmin, got.HiddenBy)
			assert.Equal(moderation.ReviewRejected, got.ReviewStatus)
			assert.Equal(2, got.SpamScore)
			require.Len(t, got.Actions, 2)
			assert.Equal("a1", got.Actions[0].ID)
			assert.Equal("a2", got.Actions[1].ID)
			assert.Equal(principal.ID("mod1"), got.Actions[1].ModeratorID)

			// callers get their own copy
			got.FlaggedBy[0] = "mutated"
			again, err := st.LoadContent(ctx, "c1")
			require.NoError(t, err)
			assert.Equal([]principal.ID{"u1"}, again.FlaggedBy)
		})
	}
}

func TestAccountRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			_, err := st.LoadAccount(ctx, "u1")
			assert.True(errors.Is(err, moderr.ErrNotFound))

			h, err := st.AccountHistory(ctx, "u1")
			assert.NoError(err)
			assert.Empty(h)

			acct := standing.Account{
				ID:                 "u1",
				TrustScore:         100,
				VerificationStatus: standing.Verified,
				Standing:           standing.Active,
				CreatedAt:          testNow,
			}
			assert.NoError(st.SaveAccount(ctx, acct))

			expires := testNow.Add(72 * time.Hour)
			acct.Standing = standing.Suspended
			acct.StandingReason = "cooling off"
			acct.StandingSetBy = "mod1"
			acct.StandingSetAt = &testNow
			acct.StandingExpiresAt = &expires
			acct.VerificationStatus = standing.Blocked
			acct.ReportCount = 4
			acct.FlaggedReportCount = 2
			assert.NoError(st.SaveAccount(ctx, acct,
				standing.Action{ID: "s1", UserID: "u1", ModeratorID: "mod1", Kind: standing.ActionWarning, Reason: "rude", Timestamp: testNow},
				standing.Action{ID: "s2", UserID: "u1", ModeratorID: "mod1", Kind: standing.ActionSuspend, Reason: "cooling off", DurationDays: 3, Timestamp: testNow, ExpiresAt: &expires},
			))
			assert.NoError(st.SaveAccount(ctx, standing.Account{ID: "u0", TrustScore: 50, Standing: standing.Banned, CreatedAt: testNow},
				standing.Action{ID: "s3", UserID: "u0", ModeratorID: "mod1", Kind: standing.ActionBan, Reason: "spam", Timestamp: testNow},
			))
			assert.NoError(st.SaveAccount(ctx, acct,
				standing.Action{ID: "s4", UserID: "u1", ModeratorID: principal.System, Kind: standing.ActionUnban, Reason: "Suspension expired", Timestamp: expires},
			))

			got, err := st.LoadAccount(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(standing.Suspended, got.Standing)
			assert.Equal("cooling off", got.StandingReason)
			assert.Equal(principal.ID("mod1"), got.StandingSetBy)
			require.NotNil(t, got.StandingExpiresAt)
			assert.True(expires.Equal(*got.StandingExpiresAt))
			assert.Equal(4, got.ReportCount)
			assert.Equal(2, got.FlaggedReportCount)

			h, err = st.AccountHistory(ctx, "u1")
			assert.NoError(err)
			require.Len(t, h, 3)
			assert.Equal([]string{"s1", "s2", "s4"}, []string{h[0].ID, h[1].ID, h[2].ID})
			assert.Equal(3, h[1].DurationDays)
			require.NotNil(t, h[1].ExpiresAt)

			all, err := st.ListAccounts(ctx)
			assert.NoError(err)
			require.Len(t, all, 2)
			assert.Equal(principal.ID("u0"), all[0].ID)
			assert.Equal(principal.ID("u1"), all[1].ID)
		})
	}
}
