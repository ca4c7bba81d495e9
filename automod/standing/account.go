package standing

import (
	"time"

	"github.com/civictrack/civictrack/automod/principal"
)

type Standing string

const (
	Active    Standing = "active"
	Warned    Standing = "warned"
	Suspended Standing = "suspended"
	Banned    Standing = "banned"
)

// Whether the standing prevents the account from acting at all.
func (s Standing) Blocks() bool {
	return s == Suspended || s == Banned
}

type Verification string

const (
	Unverified Verification = "unverified"
	Verified   Verification = "verified"
	Blocked    Verification = "blocked"
)

func ParseVerification(s string) (Verification, bool) {
	switch v := Verification(s); v {
	case Unverified, Verified, Blocked:
		return v, true
	}
	return "", false
}

type ActionKind string

const (
	ActionBan     ActionKind = "ban"
	ActionUnban   ActionKind = "unban"
	ActionSuspend ActionKind = "suspend"
	ActionWarning ActionKind = "warning"
)

// The subset of an account's state relevant to moderation and trust.
type Account struct {
	ID principal.ID `json:"id"`
	// 0..100, only ever lowered by warnings
	TrustScore         int          `json:"trustScore"`
	ReportCount        int          `json:"reportCount"`
	FlaggedReportCount int          `json:"flaggedReportCount"`
	VerificationStatus Verification `json:"verificationStatus"`

	Standing       Standing     `json:"standing"`
	StandingReason string       `json:"standingReason,omitempty"`
	StandingSetBy  principal.ID `json:"standingSetBy,omitempty"`
	StandingSetAt  *time.Time   `json:"standingSetAt,omitempty"`
	// only present for suspensions
	StandingExpiresAt *time.Time `json:"standingExpiresAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Immutable audit log entry for a change of account standing.
type Action struct {
	ID           string       `json:"id"`
	UserID       principal.ID `json:"userId"`
	ModeratorID  principal.ID `json:"moderatorId"`
	Kind         ActionKind   `json:"kind"`
	Reason       string       `json:"reason"`
	DurationDays int          `json:"durationDays,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	ExpiresAt    *time.Time   `json:"expiresAt,omitempty"`
}

// Whether the suspension window has lapsed as of now.
func (a *Account) SuspensionExpired(now time.Time) bool {
	return a.Standing == Suspended && a.StandingExpiresAt != nil && a.StandingExpiresAt.Before(now)
}

func (a *Account) setStanding(st Standing, reason string, by principal.ID, now time.Time, expires *time.Time) {
	a.Standing = st
	a.StandingReason = reason
	a.StandingSetBy = by
	a.StandingSetAt = &now
	a.StandingExpiresAt = expires
}

func (a *Account) clearStanding() {
	a.Standing = Active
	a.StandingReason = ""
	a.StandingSetBy = ""
	a.StandingSetAt = nil
	a.StandingExpiresAt = nil
}

// Standing filter values accepted by FilterByStanding. "all" and the empty string match everything.
const FilterAll = "all"

func FilterByStanding(accounts []Account, filter string) []Account {
	out := []Account{}
	for _, a := range accounts {
		if filter == "" || filter == FilterAll || string(a.Standing) == filter {
			out = append(out, a)
		}
	}
	return out
}

type Stats struct {
	Total             int     `json:"total"`
	Active            int     `json:"active"`
	Warned            int     `json:"warned"`
	Suspended         int     `json:"suspended"`
	Banned            int     `json:"banned"`
	Verified          int     `json:"verified"`
	Unverified        int     `json:"unverified"`
	AverageTrustScore float64 `json:"averageTrustScore"`
}

func ComputeStats(accounts []Account) Stats {
	st := Stats{Total: len(accounts)}
	sum := 0
	for _, a := range accounts {
		switch a.Standing {
		case Active:
			st.Active++
		case Warned:
			st.Warned++
		case Suspended:
			st.Suspended++
		case Banned:
			st.Banned++
		}
		switch a.VerificationStatus {
		case Verified:
			st.Verified++
		case Unverified:
			st.Unverified++
		}
		sum += a.TrustScore
	}
	if st.Total > 0 {
		st.AverageTrustScore = float64(sum) / float64(st.Total)
	}
	return st
}
