package automod

import (
	"github.com/civictrack/civictrack/automod/advisor"
	"github.com/civictrack/civictrack/automod/engine"
	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/standing"
)

type Engine = engine.Engine
type EngineConfig = engine.Config
type Submission = engine.Submission
type Stats = engine.Stats

type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier

type ModerationStatus = moderation.Status
type ModerationAction = moderation.Action
type UserAccount = standing.Account
type UserStandingAction = standing.Action
type Suggestion = advisor.Suggestion

var (
	NewEngine     = engine.NewEngine
	DefaultConfig = engine.DefaultConfig

	ErrInvalidArgument   = moderr.ErrInvalidArgument
	ErrInvalidTransition = moderr.ErrInvalidTransition
	ErrNotFound          = moderr.ErrNotFound
	ErrConflict          = moderr.ErrConflict
)
