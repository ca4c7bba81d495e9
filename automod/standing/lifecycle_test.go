package standing

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testLifecycle() (*Lifecycle, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLifecycle(DefaultConfig())
	l.Clock = clk.Now
	n := 0
	l.NewID = func() string {
		n++
		return fmt.Sprintf("std-%d", n)
	}
	return l, clk
}

func newTestAccount(t *testing.T, l *Lifecycle) Account {
	acct, err := l.NewAccount("user1", Verified)
	require.NoError(t, err)
	return acct
}

func TestNewAccount(t *testing.T) {
	assert := assert.New(t)
	l, _ := testLifecycle()

	acct := newTestAccount(t, l)
	assert.Equal(Active, acct.Standing)
	assert.Equal(100, acct.TrustScore)
	assert.Equal(Verified, acct.VerificationStatus)

	acct, err := l.NewAccount("user2", "")
	assert.NoError(err)
	assert.Equal(Unverified, acct.VerificationStatus)

	_, err = l.NewAccount("", Verified)
	assert.True(errors.Is(err, moderr.ErrInvalidArgument))
	_, err = l.NewAccount("user3", Verification("pending"))
	assert.True(errors.Is(err, moderr.ErrInvalidArgument))
}

func TestBanUnban(t *testing.T) {
	assert := assert.New(t)
	l, _ := testLifecycle()
	acct := newTestAccount(t, l)

	acct, act, err := l.Ban(acct, "mod1", "repeated spam")
	assert.NoError(err)
	assert.Equal(Banned, acct.Standing)
	assert.Equal(Blocked, acct.VerificationStatus)
	assert.Equal("repeated spam", acct.StandingReason)
	assert.Equal(principal.ID("mod1"), acct.StandingSetBy)
	assert.Nil(acct.StandingExpiresAt)
	assert.Equal(ActionBan, act.Kind)
	assert.Equal(principal.ID("user1"), act.UserID)

	acct, _, ok := l.CanPerform(acct, "comment")
	assert.False(ok)

	acct, act, err = l.Unban(acct, "mod1", "appeal accepted")
	assert.NoError(err)
	assert.Equal(Active, acct.Standing)
	assert.Equal(Verified, acct.VerificationStatus)
	assert.Empty(acct.StandingReason)
	assert.Nil(acct.StandingSetAt)
	assert.Equal(ActionUnban, act.Kind)

	// already active
	same, act, err := l.Unban(acct, "mod1", "again")
	assert.NoError(err)
	assert.Nil(act)
	assert.Equal(acct, same)
}

func TestBanFromSuspension(t *testing.T) {
	assert := assert.New(t)
	l, _ := testLifecycle()
	acct := newTestAccount(t, l)

	acct, _, err := l.Suspend(acct, "mod1", "cooling off", 7)
	assert.NoError(err)
	acct, _, err = l.Ban(acct, "mod1", "continued abuse")
	assert.NoError(err)
	assert.Equal(Banned, acct.Standing)
	assert.Nil(acct.StandingExpiresAt)

	_, act, err := l.Suspend(acct, "mod1", "downgrade", 3)
	assert.True(errors.Is(err, moderr.ErrInvalidTransition))
	assert.Nil(act)
}

func TestSuspend(t *testing.T) {
	assert := assert.New(t)
	l, clk := testLifecycle()
	acct := newTestAccount(t, l)

	_, _, err := l.Suspend(acct, "mod1", "cooling off", 0)
	assert.True(errors.Is(err, moderr.ErrInvalidArgument))
	_, _, err = l.Suspend(acct, "mod1", "cooling off", -2)
	assert.True(errors.Is(err, moderr.ErrInvalidArgument))

	acct, act, err := l.Suspend(acct, "mod1", "cooling off", 7)
	assert.NoError(err)
	assert.Equal(Suspended, acct.Standing)
	assert.Equal(Blocked, acct.VerificationStatus)
	require.NotNil(t, acct.StandingExpiresAt)
	assert.Equal(clk.now.Add(7*24*time.Hour), *acct.StandingExpiresAt)
	assert.Equal(7, act.DurationDays)
	assert.Equal(acct.StandingExpiresAt, act.ExpiresAt)

	acct, expired, ok := l.CanPerform(acct, "comment")
	assert.False(ok)
	assert.Nil(expired)
	assert.Equal(Suspended, acct.Standing)
}

func TestSuspensionExpiry(t *testing.T) {
	assert := assert.New(t)
	l, clk := testLifecycle()
	acct := newTestAccount(t, l)

	acct, _, err := l.Suspend(acct, "mod1", "cooling off", 1)
	assert.NoError(err)

	// exactly at the expiry instant the suspension still holds
	clk.Advance(24 * time.Hour)
	_, act, ok := l.CheckExpiry(acct)
	assert.False(ok)
	assert.Nil(act)

	clk.Advance(time.Second)
	acct, act, ok = l.CanPerform(acct, "comment")
	assert.True(ok)
	require.NotNil(t, act)
	assert.Equal(ActionUnban, act.Kind)
	assert.Equal(principal.System, act.ModeratorID)
	assert.Equal(Active, acct.Standing)
	assert.Equal(Verified, acct.VerificationStatus)
	assert.Nil(acct.StandingExpiresAt)

	// second check is a no-op
	again, act, ok := l.CheckExpiry(acct)
	assert.True(ok)
	assert.Nil(act)
	assert.Equal(acct, again)
}

func TestWarn(t *testing.T) {
	assert := assert.New(t)
	l, _ := testLifecycle()
	acct := newTestAccount(t, l)

	acct, act, err := l.Warn(acct, "mod1", "rude comments")
	assert.NoError(err)
	assert.Equal(Warned, acct.Standing)
	assert.Equal(90, acct.TrustScore)
	assert.Equal(ActionWarning, act.Kind)

	// warned accounts can still act
	_, _, ok := l.CanPerform(acct, PermReport)
	assert.True(ok)

	for range 12 {
		acct, _, err = l.Warn(acct, "mod1", "rude comments")
		assert.NoError(err)
	}
	assert.Equal(0, acct.TrustScore)
	assert.Equal(Warned, acct.Standing)

	_, _, ok = l.CanPerform(acct, PermReport)
	assert.False(ok)
	_, _, ok = l.CanPerform(acct, "comment")
	assert.True(ok)

	// suspended accounts stay suspended
	acct, _, err = l.Suspend(acct, "mod1", "cooling off", 3)
	assert.NoError(err)
	acct, _, err = l.Warn(acct, "mod1", "more rudeness")
	assert.NoError(err)
	assert.Equal(Suspended, acct.Standing)
}

func TestLowTrustFloor(t *testing.T) {
	assert := assert.New(t)
	l, _ := testLifecycle()
	acct := newTestAccount(t, l)

	acct.TrustScore = 30
	_, _, ok := l.CanPerform(acct, PermReport)
	assert.True(ok)
	acct.TrustScore = 29
	_, _, ok = l.CanPerform(acct, PermReport)
	assert.False(ok)
}

func TestModeratorValidation(t *testing.T) {
	assert := assert.New(t)
	l, _ := testLifecycle()
	acct := newTestAccount(t, l)

	_, _, err := l.Ban(acct, "mod1", "")
	assert.True(errors.Is(err, moderr.ErrInvalidArgument))
	_, _, err = l.Warn(acct, "", "reason")
	assert.True(errors.Is(err, moderr.ErrInvalidArgument))
	_, _, err = l.Unban(acct, "mod1", " ")
	assert.True(errors.Is(err, moderr.ErrInvalidArgument))
	_, _, err = l.Suspend(acct, "mod1", "", 3)
	assert.True(errors.Is(err, moderr.ErrInvalidArgument))
}

func TestStatsAndFilter(t *testing.T) {
	assert := assert.New(t)

	accounts := []Account{
		{ID: "a", Standing: Active, VerificationStatus: Verified, TrustScore: 100},
		{ID: "b", Standing: Warned, VerificationStatus: Unverified, TrustScore: 80},
		{ID: "c", Standing: Banned, VerificationStatus: Blocked, TrustScore: 40},
		{ID: "d", Standing: Suspended, VerificationStatus: Blocked, TrustScore: 60},
	}
	st := ComputeStats(accounts)
	assert.Equal(4, st.Total)
	assert.Equal(1, st.Active)
	assert.Equal(1, st.Warned)
	assert.Equal(1, st.Banned)
	assert.Equal(1, st.Suspended)
	assert.Equal(1, st.Verified)
	assert.Equal(1, st.Unverified)
	assert.InDelta(70.0, st.AverageTrustScore, 0.001)

	assert.Equal(Stats{}, ComputeStats(nil))

	assert.Len(FilterByStanding(accounts, ""), 4)
	assert.Len(FilterByStanding(accounts, FilterAll), 4)
	banned := FilterByStanding(accounts, string(Banned))
	assert.Len(banned, 1)
	assert.Equal(principal.ID("c"), banned[0].ID)
	assert.Empty(FilterByStanding(accounts, "bogus"))
}
