// Account standing lifecycle: bans, suspensions, warnings, and lazy suspension expiry.
//
// Like the moderation package, everything here is a pure transition over an Account value. Transitions return the new account and the standing action to append to the account's history. A nil action means the call changed nothing.
package standing

import (
	"strings"
	"time"

	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"

	"github.com/google/uuid"
)

const (
	DefaultWarningTrustPenalty = 10
	DefaultLowTrustReportFloor = 30
	DefaultInitialTrustScore   = 100

	MaxTrustScore = 100

	// permission checked against the low-trust floor
	PermReport = "report"

	expiryReason = "Suspension expired"
)

type Config struct {
	WarningTrustPenalty int `json:"warningTrustPenalty" validate:"gte=0,lte=100"`
	LowTrustReportFloor int `json:"lowTrustReportFloor" validate:"gte=0,lte=100"`
	InitialTrustScore   int `json:"initialTrustScore" validate:"gte=0,lte=100"`
}

func DefaultConfig() Config {
	return Config{
		WarningTrustPenalty: DefaultWarningTrustPenalty,
		LowTrustReportFloor: DefaultLowTrustReportFloor,
		InitialTrustScore:   DefaultInitialTrustScore,
	}
}

type Lifecycle struct {
	Config Config
	Clock  func() time.Time
	NewID  func() string
}

func NewLifecycle(cfg Config) *Lifecycle {
	return &Lifecycle{
		Config: cfg,
		Clock:  func() time.Time { return time.Now().UTC() },
		NewID:  uuid.NewString,
	}
}

// Creates an account in active standing with the initial trust score.
func (l *Lifecycle) NewAccount(userID principal.ID, verification Verification) (Account, error) {
	if !userID.Valid() {
		return Account{}, moderr.InvalidArgument("user ID is required")
	}
	if verification == "" {
		verification = Unverified
	}
	if _, ok := ParseVerification(string(verification)); !ok {
		return Account{}, moderr.InvalidArgument("unknown verification status %q", verification)
	}
	return Account{
		ID:                 userID,
		TrustScore:         l.Config.InitialTrustScore,
		VerificationStatus: verification,
		Standing:           Active,
		CreatedAt:          l.Clock(),
	}, nil
}

func (l *Lifecycle) Ban(acct Account, moderatorID principal.ID, reason string) (Account, *Action, error) {
	if err := checkModerator(moderatorID, reason, ActionBan); err != nil {
		return acct, nil, err
	}
	now := l.Clock()
	acct.setStanding(Banned, reason, moderatorID, now, nil)
	acct.VerificationStatus = Blocked
	return acct, l.newAction(acct.ID, moderatorID, ActionBan, reason, 0, now, nil), nil
}

// Restores a suspended or banned account to active. Unbanning an account which is not blocked is a no-op.
func (l *Lifecycle) Unban(acct Account, moderatorID principal.ID, reason string) (Account, *Action, error) {
	if err := checkModerator(moderatorID, reason, ActionUnban); err != nil {
		return acct, nil, err
	}
	if !acct.Standing.Blocks() {
		return acct, nil, nil
	}
	now := l.Clock()
	acct.clearStanding()
	acct.VerificationStatus = Verified
	return acct, l.newAction(acct.ID, moderatorID, ActionUnban, reason, 0, now, nil), nil
}

func (l *Lifecycle) Suspend(acct Account, moderatorID principal.ID, reason string, days int) (Account, *Action, error) {
	if err := checkModerator(moderatorID, reason, ActionSuspend); err != nil {
		return acct, nil, err
	}
	if days <= 0 {
		return acct, nil, moderr.InvalidArgument("suspension must last at least one day, got %d", days)
	}
	if acct.Standing == Banned {
		return acct, nil, moderr.InvalidTransition("account %s is banned", acct.ID)
	}
	now := l.Clock()
	expires := now.Add(time.Duration(days) * 24 * time.Hour)
	acct.setStanding(Suspended, reason, moderatorID, now, &expires)
	acct.VerificationStatus = Blocked
	return acct, l.newAction(acct.ID, moderatorID, ActionSuspend, reason, days, now, &expires), nil
}

// Lowers the trust score by the warning penalty, floored at zero. Active accounts become warned; suspended and banned accounts keep their standing.
func (l *Lifecycle) Warn(acct Account, moderatorID principal.ID, reason string) (Account, *Action, error) {
	if err := checkModerator(moderatorID, reason, ActionWarning); err != nil {
		return acct, nil, err
	}
	now := l.Clock()
	acct.TrustScore = max(0, acct.TrustScore-l.Config.WarningTrustPenalty)
	if acct.Standing == Active {
		acct.setStanding(Warned, reason, moderatorID, now, nil)
	}
	return acct, l.newAction(acct.ID, moderatorID, ActionWarning, reason, 0, now, nil), nil
}

// Lifts a lapsed suspension, recording a system unban. Returns whether the account may act.
//
// Calling this again after the suspension has been lifted is a no-op.
func (l *Lifecycle) CheckExpiry(acct Account) (Account, *Action, bool) {
	now := l.Clock()
	if !acct.SuspensionExpired(now) {
		return acct, nil, !acct.Standing.Blocks()
	}
	acct.clearStanding()
	acct.VerificationStatus = Verified
	return acct, l.newAction(acct.ID, principal.System, ActionUnban, expiryReason, 0, now, nil), true
}

// Whether the account may perform the named action, after lifting any lapsed suspension.
func (l *Lifecycle) CanPerform(acct Account, action string) (Account, *Action, bool) {
	acct, expired, ok := l.CheckExpiry(acct)
	if !ok {
		return acct, expired, false
	}
	if action == PermReport && acct.TrustScore < l.Config.LowTrustReportFloor {
		return acct, expired, false
	}
	return acct, expired, true
}

func (l *Lifecycle) newAction(userID, moderatorID principal.ID, kind ActionKind, reason string, days int, now time.Time, expires *time.Time) *Action {
	return &Action{
		ID:           l.NewID(),
		UserID:       userID,
		ModeratorID:  moderatorID,
		Kind:         kind,
		Reason:       reason,
		DurationDays: days,
		Timestamp:    now,
		ExpiresAt:    expires,
	}
}

func checkModerator(moderatorID principal.ID, reason string, kind ActionKind) error {
	if !moderatorID.Valid() {
		return moderr.InvalidArgument("moderator ID is required for %s", kind)
	}
	if strings.TrimSpace(reason) == "" {
		return moderr.InvalidArgument("a reason is required for %s", kind)
	}
	return nil
}
