package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/civictrack/civictrack/automod/advisor"
	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/risk"
	"github.com/civictrack/civictrack/automod/standing"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Tunable thresholds for the whole engine. The zero value is not usable; start from DefaultConfig.
type Config struct {
	AutoHideThreshold          int  `json:"autoHideThreshold" validate:"gte=1"`
	SpamAutoHideScore          int  `json:"spamAutoHideScore" validate:"gte=0,lte=10"`
	WarningTrustPenalty        int  `json:"warningTrustPenalty" validate:"gte=0,lte=100"`
	LowTrustReportFloor        int  `json:"lowTrustReportFloor" validate:"gte=0,lte=100"`
	RiskSuggestionThreshold    int  `json:"riskSuggestionThreshold" validate:"gte=0,lte=100"`
	SuspendRiskThreshold       int  `json:"suspendRiskThreshold" validate:"gte=0,lte=100,gtefield=RiskSuggestionThreshold"`
	BanRiskThreshold           int  `json:"banRiskThreshold" validate:"gte=0,lte=100,gtefield=SuspendRiskThreshold"`
	RecentBanWindowDays        int  `json:"recentBanWindowDays" validate:"gte=0"`
	InitialTrustScore          int  `json:"initialTrustScore" validate:"gte=0,lte=100"`
	DisableSpamDetection       bool `json:"disableSpamDetection"`
	DisableCommunityModeration bool `json:"disableCommunityModeration"`
	// max notifications sent per hour; zero disables the limit
	NotifyQuotaHour int `json:"notifyQuotaHour" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		AutoHideThreshold:       moderation.DefaultAutoHideThreshold,
		SpamAutoHideScore:       moderation.DefaultSpamAutoHideScore,
		WarningTrustPenalty:     standing.DefaultWarningTrustPenalty,
		LowTrustReportFloor:     standing.DefaultLowTrustReportFloor,
		RiskSuggestionThreshold: advisor.DefaultSuggestionThreshold,
		SuspendRiskThreshold:    advisor.DefaultSuspendThreshold,
		BanRiskThreshold:        advisor.DefaultBanThreshold,
		RecentBanWindowDays:     risk.DefaultRecentBanWindowDays,
		InitialTrustScore:       standing.DefaultInitialTrustScore,
		NotifyQuotaHour:         DefaultNotifyQuotaHour,
	}
}

// Checks field ranges. Failures wrap moderr.ErrInvalidArgument.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating engine config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return moderr.InvalidArgument("engine config: %s", strings.Join(msgs, "; "))
}

func (c Config) Moderation() moderation.Config {
	return moderation.Config{
		AutoHideThreshold:          c.AutoHideThreshold,
		SpamAutoHideScore:          c.SpamAutoHideScore,
		DisableSpamDetection:       c.DisableSpamDetection,
		DisableCommunityModeration: c.DisableCommunityModeration,
	}
}

func (c Config) Standing() standing.Config {
	return standing.Config{
		WarningTrustPenalty: c.WarningTrustPenalty,
		LowTrustReportFloor: c.LowTrustReportFloor,
		InitialTrustScore:   c.InitialTrustScore,
	}
}

func (c Config) Advisor() advisor.Config {
	return advisor.Config{
		SuggestionThreshold: c.RiskSuggestionThreshold,
		SuspendThreshold:    c.SuspendRiskThreshold,
		BanThreshold:        c.BanRiskThreshold,
		Risk:                risk.Config{RecentBanWindowDays: c.RecentBanWindowDays},
	}
}
