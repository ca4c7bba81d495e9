// Moderation and trust engine for a civic-issue reporting platform.
//
// This package (`github.com/civictrack/civictrack/automod`) decides whether submitted issue reports stay visible, and helps moderators keep track of the accounts behind them. Content moves through a visibility state machine driven by community flags, a heuristic spam score, and moderator decisions. Accounts move through a standing lifecycle (warnings, suspensions, bans), and a risk model over account statistics drives an advisor which suggests interventions for human review. Every transition appends to an audit trail.
//
// The state machines (`automod/moderation`, `automod/standing`) and scorers (`automod/spam`, `automod/risk`, `automod/advisor`) are pure. `automod/engine` wraps them with per-item serialization, persistence, counters, caches and notifications. See `cmd/civicmod` for a daemon built on this package.
package automod
