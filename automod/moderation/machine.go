// Content visibility and review state machine.
//
// Every operation is a pure transition from (current status, input) to a new status plus appended audit entries. Nothing here performs I/O or locking: the caller is expected to serialize transitions per content item, and to persist the returned status atomically.
package moderation

import (
	"fmt"
	"strings"
	"time"

	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/spam"

	"github.com/google/uuid"
)

const (
	DefaultAutoHideThreshold = 3
	DefaultSpamAutoHideScore = 7

	defaultFlagReason   = "flagged"
	unflagReason        = "User removed flag"
	autoUnhideReason    = "Auto-unhidden: flags dropped below threshold"
	autoHideFlagsPrefix = "Auto-hidden after"
)

type Config struct {
	// number of distinct flags at which content is hidden automatically
	AutoHideThreshold int `json:"autoHideThreshold" validate:"gte=1"`
	// spam score at which content is hidden automatically
	SpamAutoHideScore int `json:"spamAutoHideScore" validate:"gte=0,lte=10"`
	// when set, spam score never triggers an automatic hide
	DisableSpamDetection bool `json:"disableSpamDetection"`
	// when set, nothing is hidden automatically; moderator actions still apply
	DisableCommunityModeration bool `json:"disableCommunityModeration"`
}

func DefaultConfig() Config {
	return Config{
		AutoHideThreshold: DefaultAutoHideThreshold,
		SpamAutoHideScore: DefaultSpamAutoHideScore,
	}
}

type Machine struct {
	Config Config
	// source of timestamps for actions and hides
	Clock func() time.Time
	// source of unique action IDs
	NewID func() string
}

func NewMachine(cfg Config) *Machine {
	return &Machine{
		Config: cfg,
		Clock:  func() time.Time { return time.Now().UTC() },
		NewID:  uuid.NewString,
	}
}

// Whether content with the given flag count and spam score should be hidden without moderator involvement.
func (m *Machine) ShouldAutoHide(flagCount, spamScore int) bool {
	if m.Config.DisableCommunityModeration {
		return false
	}
	if flagCount >= m.Config.AutoHideThreshold {
		return true
	}
	if !m.Config.DisableSpamDetection && spamScore >= m.Config.SpamAutoHideScore {
		return true
	}
	return false
}

// Creates the initial moderation status for newly submitted content, scoring it for spam.
//
// Content whose spam score alone crosses the auto-hide threshold starts out hidden.
func (m *Machine) NewStatus(contentID string, submitterID principal.ID, title, description string) (Status, error) {
	if strings.TrimSpace(contentID) == "" {
		return Status{}, moderr.InvalidArgument("content ID is required")
	}
	if !submitterID.Valid() {
		return Status{}, moderr.InvalidArgument("submitter ID is required")
	}
	now := m.Clock()
	s := Status{
		ContentID:    contentID,
		SubmitterID:  submitterID,
		FlaggedBy:    []principal.ID{},
		SpamScore:    spam.Score(title, description),
		ReviewStatus: ReviewPending,
		CreatedAt:    now,
		Actions:      []Action{},
	}
	if m.ShouldAutoHide(0, s.SpamScore) {
		s.hide(HiddenBySystem, fmt.Sprintf("Auto-hidden: spam score %d", s.SpamScore), now)
		s.Actions = append(s.Actions, m.newAction(contentID, principal.System, ActionHide, s.HiddenReason, "", now))
	}
	return s, nil
}

// Records a flag from userID. A repeat flag from the same user returns the status unchanged.
//
// If the flag pushes the content over the auto-hide threshold, it is hidden and a system "hide" entry is appended after the "flag" entry.
func (m *Machine) Flag(cur Status, userID principal.ID, reason string) (Status, error) {
	if !userID.Valid() {
		return cur, moderr.InvalidArgument("flagging user ID is required")
	}
	if cur.HasFlagged(userID) {
		return cur, nil
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultFlagReason
	}
	now := m.Clock()
	s := cur.clone()
	s.FlaggedBy = append(s.FlaggedBy, userID)
	s.FlagCount++
	s.EverFlagged = true
	s.Actions = append(s.Actions, m.newAction(s.ContentID, userID, ActionFlag, reason, "", now))

	if !s.IsHidden && m.ShouldAutoHide(s.FlagCount, s.SpamScore) {
		s.hide(HiddenBySystem, fmt.Sprintf("%s %d flags", autoHideFlagsPrefix, s.FlagCount), now)
		s.ReviewStatus = ReviewPending
		s.Actions = append(s.Actions, m.newAction(s.ContentID, principal.System, ActionHide, fmt.Sprintf("Auto-hidden: %d flags", s.FlagCount), "", now))
	}
	return s, nil
}

// Withdraws a flag previously made by userID. Withdrawing a flag that was never made returns the status unchanged.
//
// Content hidden by the system, for flags or for spam, is restored and approved once the flag count drops below the auto-hide threshold. Content hidden by a moderator is never restored here.
func (m *Machine) Unflag(cur Status, userID principal.ID) (Status, error) {
	if !userID.Valid() {
		return cur, moderr.InvalidArgument("unflagging user ID is required")
	}
	if !cur.HasFlagged(userID) {
		return cur, nil
	}
	now := m.Clock()
	s := cur.clone()
	kept := s.FlaggedBy[:0]
	for _, id := range s.FlaggedBy {
		if id != userID {
			kept = append(kept, id)
		}
	}
	s.FlaggedBy = kept
	s.FlagCount = max(0, s.FlagCount-1)
	s.Actions = append(s.Actions, m.newAction(s.ContentID, userID, ActionUnflag, unflagReason, "", now))

	if s.IsHidden && s.HiddenBy == HiddenBySystem && !s.Removed && s.FlagCount < m.Config.AutoHideThreshold {
		s.unhide()
		s.ReviewStatus = ReviewApproved
		s.Actions = append(s.Actions, m.newAction(s.ContentID, principal.System, ActionUnhide, autoUnhideReason, "", now))
	}
	return s, nil
}

// Applies a moderator decision. Moderator actions are authoritative: each call appends an audit entry, even if the status already reflects the decision.
func (m *Machine) AdminModerate(cur Status, moderatorID principal.ID, kind ActionKind, reason string) (Status, error) {
	if !moderatorID.Valid() {
		return cur, moderr.InvalidArgument("moderator ID is required")
	}
	if strings.TrimSpace(reason) == "" {
		return cur, moderr.InvalidArgument("a reason is required for moderator action %q", kind)
	}
	if _, ok := ParseAdminAction(string(kind)); !ok {
		return cur, moderr.InvalidArgument("unknown moderator action %q", kind)
	}
	if cur.Removed && (kind == ActionUnhide || kind == ActionApprove) {
		return cur, moderr.InvalidTransition("content %s has been removed", cur.ContentID)
	}

	now := m.Clock()
	s := cur.clone()
	s.Actions = append(s.Actions, m.newAction(s.ContentID, principal.Admin, kind, reason, moderatorID, now))

	switch kind {
	case ActionHide:
		s.hide(HiddenByAdmin, "Moderator action: "+reason, now)
		s.ReviewStatus = ReviewRejected
	case ActionUnhide:
		s.unhide()
		s.ReviewStatus = ReviewApproved
	case ActionApprove:
		s.unhide()
		s.ReviewStatus = ReviewApproved
	case ActionReject:
		s.hide(HiddenByAdmin, "Rejected by moderator: "+reason, now)
		s.ReviewStatus = ReviewRejected
	case ActionRemove:
		s.hide(HiddenByAdmin, "Removed by moderator: "+reason, now)
		s.ReviewStatus = ReviewRejected
		s.Removed = true
	}
	return s, nil
}

func (m *Machine) newAction(contentID string, actor principal.ID, kind ActionKind, reason string, moderatorID principal.ID, now time.Time) Action {
	return Action{
		ID:          m.NewID(),
		ContentID:   contentID,
		ActorID:     actor,
		Kind:        kind,
		Reason:      reason,
		ModeratorID: moderatorID,
		Timestamp:   now,
	}
}
