package engine

import (
	"context"

	"github.com/civictrack/civictrack/automod/countstore"
	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/standing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Creates the account in active standing if it does not exist yet. Returns the account and whether it was created.
//
// An account created implicitly (by submitting or being flagged) stays unverified; calling this later with a verification status updates it, unless the account is blocked.
func (eng *Engine) EnsureAccount(ctx context.Context, userID principal.ID, verification standing.Verification) (*standing.Account, bool, error) {
	ctx, span := tracer.Start(ctx, "EnsureAccount", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()
	done := eng.observe("ensure-account")

	if verification != "" {
		if _, ok := standing.ParseVerification(string(verification)); !ok {
			return nil, false, done(moderr.InvalidArgument("unknown verification status %q", verification))
		}
	}
	ch, err := eng.updateAccount(ctx, userID, true, func(acct standing.Account) (standing.Account, []standing.Action, error) {
		if verification != "" && acct.VerificationStatus != standing.Blocked {
			acct.VerificationStatus = verification
		}
		return acct, nil, nil
	})
	if err != nil {
		return nil, false, done(err)
	}
	if ch.created {
		eng.Logger.Info("account created", "user", userID, "verification", ch.acct.VerificationStatus)
	}
	eng.afterAccountChange(ctx, ch.acct, ch.actions)
	return &ch.acct, ch.created, done(nil)
}

func (eng *Engine) Ban(ctx context.Context, userID, moderatorID principal.ID, reason string) (*standing.Account, *standing.Action, error) {
	return eng.moderateAccount(ctx, "ban", userID, moderatorID, func(acct standing.Account) (standing.Account, *standing.Action, error) {
		return eng.Accounts.Ban(acct, moderatorID, reason)
	})
}

// Lifts a ban or suspension. Unbanning an account in good standing returns a nil action.
func (eng *Engine) Unban(ctx context.Context, userID, moderatorID principal.ID, reason string) (*standing.Account, *standing.Action, error) {
	return eng.moderateAccount(ctx, "unban", userID, moderatorID, func(acct standing.Account) (standing.Account, *standing.Action, error) {
		return eng.Accounts.Unban(acct, moderatorID, reason)
	})
}

func (eng *Engine) Suspend(ctx context.Context, userID, moderatorID principal.ID, reason string, days int) (*standing.Account, *standing.Action, error) {
	return eng.moderateAccount(ctx, "suspend", userID, moderatorID, func(acct standing.Account) (standing.Account, *standing.Action, error) {
		return eng.Accounts.Suspend(acct, moderatorID, reason, days)
	})
}

func (eng *Engine) Warn(ctx context.Context, userID, moderatorID principal.ID, reason string) (*standing.Account, *standing.Action, error) {
	return eng.moderateAccount(ctx, "warn", userID, moderatorID, func(acct standing.Account) (standing.Account, *standing.Action, error) {
		return eng.Accounts.Warn(acct, moderatorID, reason)
	})
}

func (eng *Engine) moderateAccount(ctx context.Context, op string, userID, moderatorID principal.ID, fn func(acct standing.Account) (standing.Account, *standing.Action, error)) (*standing.Account, *standing.Action, error) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("moderator.id", moderatorID.String()),
	))
	defer span.End()
	done := eng.observe(op)

	var act *standing.Action
	ch, err := eng.updateAccount(ctx, userID, false, func(acct standing.Account) (standing.Account, []standing.Action, error) {
		next, a, err := fn(acct)
		if err != nil || a == nil {
			return next, nil, err
		}
		act = a
		return next, []standing.Action{*a}, nil
	})
	if err != nil {
		return nil, nil, done(err)
	}
	if act != nil {
		eng.Logger.Info("account standing action", "user", userID, "moderator", moderatorID, "action", act.Kind, "standing", ch.acct.Standing, "reason", act.Reason)
		eng.increment(ctx, countstore.CounterModeratorActions, moderatorID.String())
	}
	eng.afterAccountChange(ctx, ch.acct, ch.actions)
	return &ch.acct, act, done(nil)
}

// Lifts a lapsed suspension, if any, and reports whether the account may act.
func (eng *Engine) CheckExpiry(ctx context.Context, userID principal.ID) (bool, error) {
	ctx, span := tracer.Start(ctx, "CheckExpiry", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer span.End()
	done := eng.observe("check-expiry")

	ch, err := eng.updateAccount(ctx, userID, false, func(acct standing.Account) (standing.Account, []standing.Action, error) {
		return acct, nil, nil
	})
	if err != nil {
		return false, done(err)
	}
	eng.afterAccountChange(ctx, ch.acct, ch.actions)
	return !ch.acct.Standing.Blocks(), done(nil)
}

// Whether the account may perform the named action (for example "report"), after lifting any lapsed suspension.
func (eng *Engine) CanPerform(ctx context.Context, userID principal.ID, action string) (bool, error) {
	ctx, span := tracer.Start(ctx, "CanPerform", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("action", action),
	))
	defer span.End()
	done := eng.observe("can-perform")

	allowed := false
	ch, err := eng.updateAccount(ctx, userID, false, func(acct standing.Account) (standing.Account, []standing.Action, error) {
		// expiry has already been applied, so this adds no action
		_, _, allowed = eng.Accounts.CanPerform(acct, action)
		return acct, nil, nil
	})
	if err != nil {
		return false, done(err)
	}
	eng.afterAccountChange(ctx, ch.acct, ch.actions)
	return allowed, done(nil)
}

func (eng *Engine) afterAccountChange(ctx context.Context, acct standing.Account, actions []standing.Action) {
	for _, act := range actions {
		if act.ModeratorID == principal.System {
			eng.Logger.Info("suspension expired", "user", acct.ID)
			eng.increment(ctx, countstore.CounterAutoActions, "account")
		}
		switch act.Kind {
		case standing.ActionBan, standing.ActionSuspend:
			eng.notifyStanding(ctx, acct, act)
		}
	}
}
