package moderation

import (
	"slices"
	"time"

	"github.com/civictrack/civictrack/automod/principal"
)

type ReviewStatus string

const (
	ReviewPending     ReviewStatus = "pending"
	ReviewApproved    ReviewStatus = "approved"
	ReviewRejected    ReviewStatus = "rejected"
	ReviewUnderReview ReviewStatus = "under_review"
)

// Which kind of actor hid a piece of content. Only system hides are reversible by unflagging.
type HiddenBy string

const (
	HiddenBySystem HiddenBy = "system"
	HiddenByAdmin  HiddenBy = "admin"
)

type ActionKind string

const (
	ActionFlag    ActionKind = "flag"
	ActionUnflag  ActionKind = "unflag"
	ActionHide    ActionKind = "hide"
	ActionUnhide  ActionKind = "unhide"
	ActionRemove  ActionKind = "remove"
	ActionApprove ActionKind = "approve"
	ActionReject  ActionKind = "reject"
)

// the subset of action kinds a moderator may request directly
var AdminActionKinds = []ActionKind{ActionHide, ActionUnhide, ActionRemove, ActionApprove, ActionReject}

func ParseAdminAction(s string) (ActionKind, bool) {
	k := ActionKind(s)
	return k, slices.Contains(AdminActionKinds, k)
}

// Immutable audit log entry. Every mutating transition appends at least one.
type Action struct {
	ID          string       `json:"id"`
	ContentID   string       `json:"contentId"`
	ActorID     principal.ID `json:"actorId"`
	Kind        ActionKind   `json:"kind"`
	Reason      string       `json:"reason"`
	ModeratorID principal.ID `json:"moderatorId,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Moderation state for a single piece of submitted content.
//
// Values are treated as immutable by this package: transitions return a modified copy and never write through to slices of the input.
type Status struct {
	ContentID   string       `json:"contentId"`
	SubmitterID principal.ID `json:"submitterId"`

	FlagCount int            `json:"flagCount"`
	FlaggedBy []principal.ID `json:"flaggedBy"`
	// set by the first ever flag, and never cleared
	EverFlagged bool `json:"everFlagged"`

	IsHidden     bool       `json:"isHidden"`
	HiddenAt     *time.Time `json:"hiddenAt,omitempty"`
	HiddenReason string     `json:"hiddenReason,omitempty"`
	HiddenBy     HiddenBy   `json:"hiddenBy,omitempty"`

	// permanently removed by a moderator; callers exclude it from all listings
	Removed bool `json:"removed"`

	SpamScore    int          `json:"spamScore"`
	ReviewStatus ReviewStatus `json:"reviewStatus"`
	CreatedAt    time.Time    `json:"createdAt"`
	Actions      []Action     `json:"actions"`
}

func (s *Status) HasFlagged(userID principal.ID) bool {
	return slices.Contains(s.FlaggedBy, userID)
}

// most recent audit entry, if any
func (s *Status) LastAction() *Action {
	if len(s.Actions) == 0 {
		return nil
	}
	a := s.Actions[len(s.Actions)-1]
	return &a
}

// copy with fresh backing arrays, so appends on the copy never alias the original
func (s Status) clone() Status {
	s.FlaggedBy = slices.Clone(s.FlaggedBy)
	s.Actions = slices.Clone(s.Actions)
	if s.HiddenAt != nil {
		t := *s.HiddenAt
		s.HiddenAt = &t
	}
	return s
}

func (s *Status) hide(by HiddenBy, reason string, now time.Time) {
	s.IsHidden = true
	s.HiddenAt = &now
	s.HiddenReason = reason
	s.HiddenBy = by
}

func (s *Status) unhide() {
	s.IsHidden = false
	s.HiddenAt = nil
	s.HiddenReason = ""
	s.HiddenBy = ""
}

// Content which has not been hidden or removed.
func Visible(all []Status) []Status {
	out := []Status{}
	for _, s := range all {
		if !s.IsHidden && !s.Removed {
			out = append(out, s)
		}
	}
	return out
}

// Content which is hidden but not removed.
func Hidden(all []Status) []Status {
	out := []Status{}
	for _, s := range all {
		if s.IsHidden && !s.Removed {
			out = append(out, s)
		}
	}
	return out
}

func PendingReview(all []Status) []Status {
	out := []Status{}
	for _, s := range all {
		if s.ReviewStatus == ReviewPending && !s.Removed {
			out = append(out, s)
		}
	}
	return out
}

type FlagReason struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// user-facing flag reasons
var FlagReasons = []FlagReason{
	{Value: "spam", Label: "Spam or irrelevant content"},
	{Value: "inappropriate", Label: "Inappropriate content"},
	{Value: "duplicate", Label: "Duplicate report"},
	{Value: "fake", Label: "False or misleading information"},
	{Value: "harassment", Label: "Harassment or abuse"},
	{Value: "other", Label: "Other (please specify)"},
}
