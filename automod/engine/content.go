package engine

import (
	"context"
	"time"

	"github.com/civictrack/civictrack/automod/countstore"
	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/standing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Scores and records newly submitted content, hiding it straight away if it looks like spam. The submitter's report count goes up by one.
//
// Submitting an already-known content ID is an ErrConflict.
func (eng *Engine) SubmitContent(ctx context.Context, sub Submission) (*moderation.Status, error) {
	ctx, span := tracer.Start(ctx, "SubmitContent", trace.WithAttributes(attribute.String("content.id", sub.ContentID)))
	defer span.End()
	done := eng.observe("submit")

	if err := sub.Validate(); err != nil {
		return nil, done(err)
	}
	ch, err := eng.updateContent(ctx, sub.ContentID, func(cur *moderation.Status) (moderation.Status, error) {
		if cur != nil {
			return moderation.Status{}, moderr.Conflict("content %s already submitted", sub.ContentID)
		}
		return eng.Content.NewStatus(sub.ContentID, sub.SubmitterID, sub.Title, sub.Description)
	})
	if err != nil {
		return nil, done(err)
	}

	logger := eng.Logger.With("content", sub.ContentID, "submitter", sub.SubmitterID)
	logger.Info("content submitted", "spamScore", ch.next.SpamScore, "hidden", ch.next.IsHidden)
	spamScoreHistogram.Observe(float64(ch.next.SpamScore))

	if _, err := eng.updateAccount(ctx, sub.SubmitterID, true, func(acct standing.Account) (standing.Account, []standing.Action, error) {
		acct.ReportCount++
		return acct, nil, nil
	}); err != nil {
		logger.Error("failed to update submitter report count", "err", err)
	}
	eng.increment(ctx, countstore.CounterSubmissions, sub.SubmitterID.String(), countstore.All)
	eng.afterContentChange(ctx, ch)
	return &ch.next, done(nil)
}

// Records a flag from userID. Repeat flags are accepted and change nothing.
func (eng *Engine) Flag(ctx context.Context, contentID string, userID principal.ID, reason string) (*moderation.Status, error) {
	ctx, span := tracer.Start(ctx, "Flag", trace.WithAttributes(
		attribute.String("content.id", contentID),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()
	done := eng.observe("flag")

	ch, err := eng.updateContent(ctx, contentID, func(cur *moderation.Status) (moderation.Status, error) {
		if cur == nil {
			return moderation.Status{}, moderr.NotFound("content %s", contentID)
		}
		return eng.Content.Flag(*cur, userID, reason)
	})
	if err != nil {
		return nil, done(err)
	}
	if !ch.changed {
		return &ch.next, done(nil)
	}

	eng.Logger.Info("content flagged", "content", contentID, "user", userID, "flagCount", ch.next.FlagCount, "hidden", ch.next.IsHidden)
	eng.increment(ctx, countstore.CounterFlags, userID.String(), countstore.All)
	submitter := ch.next.SubmitterID.String()
	if err := eng.Counters.IncrementDistinct(ctx, countstore.CounterFlaggedContent, submitter, contentID); err != nil {
		eng.Logger.Error("failed to increment flagged content counter", "submitter", submitter, "err", err)
	}

	// a submitter's flagged report count goes up once per content item, no matter how often it is flagged
	if !ch.prev.EverFlagged && ch.next.EverFlagged {
		if _, err := eng.updateAccount(ctx, ch.next.SubmitterID, true, func(acct standing.Account) (standing.Account, []standing.Action, error) {
			acct.FlaggedReportCount++
			return acct, nil, nil
		}); err != nil {
			eng.Logger.Error("failed to update flagged report count", "submitter", submitter, "err", err)
		}
	}
	eng.afterContentChange(ctx, ch)
	return &ch.next, done(nil)
}

// Withdraws a flag from userID. Withdrawing a flag that was never made changes nothing.
func (eng *Engine) Unflag(ctx context.Context, contentID string, userID principal.ID) (*moderation.Status, error) {
	ctx, span := tracer.Start(ctx, "Unflag", trace.WithAttributes(
		attribute.String("content.id", contentID),
		attribute.String("user.id", userID.String()),
	))
	defer span.End()
	done := eng.observe("unflag")

	ch, err := eng.updateContent(ctx, contentID, func(cur *moderation.Status) (moderation.Status, error) {
		if cur == nil {
			return moderation.Status{}, moderr.NotFound("content %s", contentID)
		}
		return eng.Content.Unflag(*cur, userID)
	})
	if err != nil {
		return nil, done(err)
	}
	if ch.changed {
		eng.Logger.Info("content unflagged", "content", contentID, "user", userID, "flagCount", ch.next.FlagCount, "hidden", ch.next.IsHidden)
		eng.afterContentChange(ctx, ch)
	}
	return &ch.next, done(nil)
}

// Applies a moderator decision to content. Every call is recorded.
func (eng *Engine) AdminModerate(ctx context.Context, contentID string, moderatorID principal.ID, kind moderation.ActionKind, reason string) (*moderation.Status, error) {
	ctx, span := tracer.Start(ctx, "AdminModerate", trace.WithAttributes(
		attribute.String("content.id", contentID),
		attribute.String("moderator.id", moderatorID.String()),
		attribute.String("action", string(kind)),
	))
	defer span.End()
	done := eng.observe("moderate")

	ch, err := eng.updateContent(ctx, contentID, func(cur *moderation.Status) (moderation.Status, error) {
		if cur == nil {
			return moderation.Status{}, moderr.NotFound("content %s", contentID)
		}
		return eng.Content.AdminModerate(*cur, moderatorID, kind, reason)
	})
	if err != nil {
		return nil, done(err)
	}
	eng.Logger.Info("moderator action", "content", contentID, "moderator", moderatorID, "action", kind, "reason", reason)
	eng.increment(ctx, countstore.CounterModeratorActions, moderatorID.String())
	eng.afterContentChange(ctx, ch)
	return &ch.next, done(nil)
}

// Side effects of a committed content transition, run after the content lock is released.
func (eng *Engine) afterContentChange(ctx context.Context, ch contentChange) {
	for _, act := range ch.newActions() {
		contentActionCount.WithLabelValues(string(act.Kind), actorType(act.ActorID)).Inc()
		if act.ActorID == principal.System {
			eng.increment(ctx, countstore.CounterAutoActions, "content")
		}
		switch act.Kind {
		case moderation.ActionHide, moderation.ActionRemove, moderation.ActionReject:
			eng.notifyContent(ctx, ch.next, act)
		}
	}
}

// Increments each named counter value, logging rather than failing on errors.
func (eng *Engine) increment(ctx context.Context, name string, vals ...string) {
	for _, val := range vals {
		if err := eng.Counters.Increment(ctx, name, val); err != nil {
			eng.Logger.Error("failed to increment counter", "counter", name, "val", val, "err", err)
		}
	}
}

// Starts timing an operation; the returned func records the outcome and passes the error through.
func (eng *Engine) observe(op string) func(error) error {
	start := time.Now()
	return func(err error) error {
		operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		operationCount.WithLabelValues(op).Inc()
		if err != nil {
			operationErrorCount.WithLabelValues(op, moderr.Kind(err)).Inc()
		}
		return err
	}
}
