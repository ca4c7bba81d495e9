// Ranked intervention suggestions derived from account risk scores.
package advisor

import (
	"sort"
	"time"

	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/risk"
	"github.com/civictrack/civictrack/automod/standing"
)

const (
	DefaultSuggestionThreshold = 60
	DefaultSuspendThreshold    = 70
	DefaultBanThreshold        = 80
)

type Kind string

const (
	SuggestBan     Kind = "Ban User"
	SuggestSuspend Kind = "Suspend User"
	SuggestWarning Kind = "Issue Warning"
)

var justifications = map[Kind]string{
	SuggestBan:     "High risk score indicating spam/abuse behavior",
	SuggestSuspend: "Elevated risk score suggesting problematic behavior",
	SuggestWarning: "Moderate risk score requiring attention",
}

// lower is more severe
func (k Kind) severity() int {
	switch k {
	case SuggestBan:
		return 0
	case SuggestSuspend:
		return 1
	default:
		return 2
	}
}

type Config struct {
	SuggestionThreshold int         `json:"riskSuggestionThreshold" validate:"gte=0,lte=100"`
	SuspendThreshold    int         `json:"suspendRiskThreshold" validate:"gte=0,lte=100"`
	BanThreshold        int         `json:"banRiskThreshold" validate:"gte=0,lte=100"`
	Risk                risk.Config `json:"risk"`
}

func DefaultConfig() Config {
	return Config{
		SuggestionThreshold: DefaultSuggestionThreshold,
		SuspendThreshold:    DefaultSuspendThreshold,
		BanThreshold:        DefaultBanThreshold,
		Risk:                risk.DefaultConfig(),
	}
}

// An account to be evaluated, along with its standing history.
type Entry struct {
	Account standing.Account
	History []standing.Action
}

type Suggestion struct {
	UserID        principal.ID     `json:"userId"`
	Kind          Kind             `json:"suggestion"`
	Justification string           `json:"justification"`
	RiskScore     int              `json:"riskScore"`
	Account       standing.Account `json:"account"`
}

// Classifies a risk score; returns false if the score does not warrant a suggestion.
func Classify(score int, cfg Config) (Kind, bool) {
	switch {
	case score <= cfg.SuggestionThreshold:
		return "", false
	case score > cfg.BanThreshold:
		return SuggestBan, true
	case score > cfg.SuspendThreshold:
		return SuggestSuspend, true
	default:
		return SuggestWarning, true
	}
}

// Computes suggestions for every entry whose risk score exceeds the suggestion threshold.
//
// Output is ordered by severity, then by risk score descending, then by user ID.
func Suggestions(entries []Entry, now time.Time, cfg Config) []Suggestion {
	out := []Suggestion{}
	for _, e := range entries {
		score := risk.Score(e.Account, e.History, now, cfg.Risk)
		kind, ok := Classify(score, cfg)
		if !ok {
			continue
		}
		out = append(out, Suggestion{
			UserID:        e.Account.ID,
			Kind:          kind,
			Justification: justifications[kind],
			RiskScore:     score,
			Account:       e.Account,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind.severity() != b.Kind.severity() {
			return a.Kind.severity() < b.Kind.severity()
		}
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		return a.UserID < b.UserID
	})
	return out
}
