// Activity counters for moderation events, bucketed by period.
//
// Includes an interface and implementations using redis and in-process memory.
package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

var Periods = []string{PeriodTotal, PeriodDay, PeriodHour}

// Counter names used by the engine.
const (
	// val: submitting account, or "all"
	CounterSubmissions = "submissions"
	// val: flagging account, or "all"
	CounterFlags = "flags"
	// val: moderator
	CounterModeratorActions = "moderator-actions"
	// val: "content" or "account"
	CounterAutoActions = "auto-actions"
	// distinct: bucket is the submitting account, val is content ID
	CounterFlaggedContent = "flagged-content"
)

// wildcard value for counters tracked across all accounts
const All = "all"

type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	Increment(ctx context.Context, name, val string) error
	GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error)
	IncrementDistinct(ctx context.Context, name, bucket, val string) error
}

func periodBucket(name, val, period string, now time.Time) string {
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val)
	case PeriodDay:
		return fmt.Sprintf("%s/%s/%s", name, val, now.UTC().Format(time.DateOnly))
	case PeriodHour:
		return fmt.Sprintf("%s/%s/%s", name, val, now.UTC().Format(time.RFC3339)[0:13])
	default:
		slog.Warn("unhandled counter period", "period", period)
		return fmt.Sprintf("%s/%s", name, val)
	}
}
