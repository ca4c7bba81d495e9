package engine

import (
	"context"

	"github.com/civictrack/civictrack/automod/countstore"
	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/standing"
)

// number of notifications the engine sends per hour, across all subjects (circuit breaker)
const DefaultNotifyQuotaHour = 100

const notifyQuotaCounter = "notify-quota"

// Interface for a type that can handle sending notifications
type Notifier interface {
	SendContentAction(ctx context.Context, st moderation.Status, act moderation.Action) error
	SendStandingAction(ctx context.Context, acct standing.Account, act standing.Action) error
}

func (eng *Engine) notifyContent(ctx context.Context, st moderation.Status, act moderation.Action) {
	if eng.Notifier == nil || !eng.circuitBreakNotify(ctx, "content") {
		return
	}
	if err := eng.Notifier.SendContentAction(ctx, st, act); err != nil {
		eng.Logger.Error("failed to deliver content notification", "content", st.ContentID, "action", act.Kind, "err", err)
		notifyErrorCount.WithLabelValues("content").Inc()
		return
	}
	notifyCount.WithLabelValues("content").Inc()
}

func (eng *Engine) notifyStanding(ctx context.Context, acct standing.Account, act standing.Action) {
	if eng.Notifier == nil || !eng.circuitBreakNotify(ctx, "account") {
		return
	}
	if err := eng.Notifier.SendStandingAction(ctx, acct, act); err != nil {
		eng.Logger.Error("failed to deliver standing notification", "user", acct.ID, "action", act.Kind, "err", err)
		notifyErrorCount.WithLabelValues("account").Inc()
		return
	}
	notifyCount.WithLabelValues("account").Inc()
}

// Checks and consumes the hourly notification quota. Returns false if the notification should be dropped.
func (eng *Engine) circuitBreakNotify(ctx context.Context, typ string) bool {
	if eng.Config.NotifyQuotaHour <= 0 {
		return true
	}
	c, err := eng.Counters.GetCount(ctx, notifyQuotaCounter, countstore.All, countstore.PeriodHour)
	if err != nil {
		// fail open
		eng.Logger.Error("failed to read notification quota", "err", err)
		return true
	}
	if c >= eng.Config.NotifyQuotaHour {
		eng.Logger.Warn("notification quota exceeded, dropping", "type", typ, "quota", eng.Config.NotifyQuotaHour)
		notifyQuotaSkipCount.WithLabelValues(typ).Inc()
		return false
	}
	eng.increment(ctx, notifyQuotaCounter, countstore.All)
	return true
}
