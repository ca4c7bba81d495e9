// Risk scoring for accounts: a 0..100 estimate of how likely an account is to be engaging in abusive behavior.
package risk

import (
	"math"
	"time"

	"github.com/civictrack/civictrack/automod/standing"
)

const (
	MinScore = 0
	MaxScore = 100

	DefaultRecentBanWindowDays = 90

	flagRatioWeight   = 40.0
	trustWeight       = 0.3
	recentBanWeight   = 20.0
	unverifiedPenalty = 15.0
)

type Config struct {
	// bans older than this many days no longer count
	RecentBanWindowDays int `json:"recentBanWindowDays" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{RecentBanWindowDays: DefaultRecentBanWindowDays}
}

// Per-component contributions to a risk score, before rounding and clamping.
type Breakdown struct {
	FlagRatio    float64 `json:"flagRatio"`
	Trust        float64 `json:"trust"`
	RecentBans   float64 `json:"recentBans"`
	Verification float64 `json:"verification"`
	Score        int     `json:"score"`
}

func (b Breakdown) Sum() float64 {
	return b.FlagRatio + b.Trust + b.RecentBans + b.Verification
}

// Computes the risk score for an account. history is the account's standing action log; only actions for acct are considered.
func Score(acct standing.Account, history []standing.Action, now time.Time, cfg Config) int {
	return Explain(acct, history, now, cfg).Score
}

func Explain(acct standing.Account, history []standing.Action, now time.Time, cfg Config) Breakdown {
	var b Breakdown
	if acct.ReportCount > 0 {
		b.FlagRatio = float64(acct.FlaggedReportCount) / float64(acct.ReportCount) * flagRatioWeight
	}
	b.Trust = float64(standing.MaxTrustScore-acct.TrustScore) * trustWeight
	b.RecentBans = float64(RecentBans(acct, history, now, cfg)) * recentBanWeight
	if acct.VerificationStatus == standing.Unverified {
		b.Verification = unverifiedPenalty
	}
	b.Score = clamp(int(math.Round(b.Sum())))
	return b
}

// Number of bans recorded against acct within the recent-ban window ending at now.
func RecentBans(acct standing.Account, history []standing.Action, now time.Time, cfg Config) int {
	since := now.Add(-time.Duration(cfg.RecentBanWindowDays) * 24 * time.Hour)
	n := 0
	for _, a := range history {
		if a.UserID != acct.ID || a.Kind != standing.ActionBan {
			continue
		}
		if a.Timestamp.After(since) && !a.Timestamp.After(now) {
			n++
		}
	}
	return n
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
