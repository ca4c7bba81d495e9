package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civictrack/civictrack/automod/moderation"
	"github.com/civictrack/civictrack/automod/moderr"
	"github.com/civictrack/civictrack/automod/principal"
	"github.com/civictrack/civictrack/automod/standing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContentRow struct {
	ContentID    string `gorm:"primaryKey"`
	SubmitterID  string `gorm:"index"`
	FlagCount    int
	FlaggedBy    []string `gorm:"serializer:json"`
	EverFlagged  bool
	IsHidden     bool `gorm:"index"`
	HiddenAt     *time.Time
	HiddenReason string
	HiddenBy     string
	Removed      bool `gorm:"index"`
	SpamScore    int
	ReviewStatus string `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ContentRow) TableName() string { return "moderation_content" }

type ContentActionRow struct {
	ID          string `gorm:"primaryKey"`
	ContentID   string `gorm:"index:idx_content_action_seq,priority:1"`
	Seq         int    `gorm:"index:idx_content_action_seq,priority:2"`
	ActorID     string
	Kind        string
	Reason      string
	ModeratorID string
	Timestamp   time.Time
}

func (ContentActionRow) TableName() string { return "moderation_content_action" }

type AccountRow struct {
	ID                 string `gorm:"primaryKey"`
	TrustScore         int
	ReportCount        int
	FlaggedReportCount int
	VerificationStatus string
	Standing           string `gorm:"index"`
	StandingReason     string
	StandingSetBy      string
	StandingSetAt      *time.Time
	StandingExpiresAt  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (AccountRow) TableName() string { return "moderation_account" }

type StandingActionRow struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"index:idx_standing_action_seq,priority:1"`
	Seq          int    `gorm:"index:idx_standing_action_seq,priority:2"`
	ModeratorID  string
	Kind         string
	Reason       string
	DurationDays int
	Timestamp    time.Time
	ExpiresAt    *time.Time
}

func (StandingActionRow) TableName() string { return "moderation_standing_action" }

// Relational store on top of gorm; works against sqlite and postgres.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// Wraps an open database handle, creating or migrating tables as needed.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ContentRow{}, &ContentActionRow{}, &AccountRow{}, &StandingActionRow{}); err != nil {
		return nil, fmt.Errorf("migrating moderation tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) LoadContent(ctx context.Context, contentID string) (*moderation.Status, error) {
	var row ContentRow
	if err := s.db.WithContext(ctx).Where("content_id = ?", contentID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, moderr.NotFound("content %s", contentID)
		}
		return nil, err
	}
	var actions []ContentActionRow
	if err := s.db.WithContext(ctx).Where("content_id = ?", contentID).Order("seq asc").Find(&actions).Error; err != nil {
		return nil, err
	}

	st := moderation.Status{
		ContentID:    row.ContentID,
		SubmitterID:  principal.ID(row.SubmitterID),
		FlagCount:    row.FlagCount,
		FlaggedBy:    make([]principal.ID, 0, len(row.FlaggedBy)),
		EverFlagged:  row.EverFlagged,
		IsHidden:     row.IsHidden,
		HiddenAt:     row.HiddenAt,
		HiddenReason: row.HiddenReason,
		HiddenBy:     moderation.HiddenBy(row.HiddenBy),
		Removed:      row.Removed,
		SpamScore:    row.SpamScore,
		ReviewStatus: moderation.ReviewStatus(row.ReviewStatus),
		CreatedAt:    row.CreatedAt,
		Actions:      make([]moderation.Action, 0, len(actions)),
	}
	for _, id := range row.FlaggedBy {
		st.FlaggedBy = append(st.FlaggedBy, principal.ID(id))
	}
	for _, a := range actions {
		st.Actions = append(st.Actions, moderation.Action{
			ID:          a.ID,
			ContentID:   a.ContentID,
			ActorID:     principal.ID(a.ActorID),
			Kind:        moderation.ActionKind(a.Kind),
			Reason:      a.Reason,
			ModeratorID: principal.ID(a.ModeratorID),
			Timestamp:   a.Timestamp,
		})
	}
	return &st, nil
}

func (s *GormStore) SaveContent(ctx context.Context, st moderation.Status) error {
	row := ContentRow{
		ContentID:    st.ContentID,
		SubmitterID:  st.SubmitterID.String(),
		FlagCount:    st.FlagCount,
		FlaggedBy:    make([]string, 0, len(st.FlaggedBy)),
		EverFlagged:  st.EverFlagged,
		IsHidden:     st.IsHidden,
		HiddenAt:     st.HiddenAt,
		HiddenReason: st.HiddenReason,
		HiddenBy:     string(st.HiddenBy),
		Removed:      st.Removed,
		SpamScore:    st.SpamScore,
		ReviewStatus: string(st.ReviewStatus),
		CreatedAt:    st.CreatedAt,
	}
	for _, id := range st.FlaggedBy {
		row.FlaggedBy = append(row.FlaggedBy, id.String())
	}
	actions := make([]ContentActionRow, 0, len(st.Actions))
	for i, a := range st.Actions {
		actions = append(actions, ContentActionRow{
			ID:          a.ID,
			ContentID:   st.ContentID,
			Seq:         i,
			ActorID:     a.ActorID.String(),
			Kind:        string(a.Kind),
			Reason:      a.Reason,
			ModeratorID: a.ModeratorID.String(),
			Timestamp:   a.Timestamp,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		if len(actions) == 0 {
			return nil
		}
		// the audit log is append-only, so existing entries are left as they are
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&actions).Error
	})
}

func accountFromRow(row AccountRow) standing.Account {
	return standing.Account{
		ID:                 principal.ID(row.ID),
		TrustScore:         row.TrustScore,
		ReportCount:        row.ReportCount,
		FlaggedReportCount: row.FlaggedReportCount,
		VerificationStatus: standing.Verification(row.VerificationStatus),
		Standing:           standing.Standing(row.Standing),
		StandingReason:     row.StandingReason,
		StandingSetBy:      principal.ID(row.StandingSetBy),
		StandingSetAt:      row.StandingSetAt,
		StandingExpiresAt:  row.StandingExpiresAt,
		CreatedAt:          row.CreatedAt,
	}
}

func (s *GormStore) LoadAccount(ctx context.Context, userID principal.ID) (*standing.Account, error) {
	var row AccountRow
	if err := s.db.WithContext(ctx).Where("id = ?", userID.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, moderr.NotFound("account %s", userID)
		}
		return nil, err
	}
	acct := accountFromRow(row)
	return &acct, nil
}

func (s *GormStore) SaveAccount(ctx context.Context, acct standing.Account, actions ...standing.Action) error {
	row := AccountRow{
		ID:                 acct.ID.String(),
		TrustScore:         acct.TrustScore,
		ReportCount:        acct.ReportCount,
		FlaggedReportCount: acct.FlaggedReportCount,
		VerificationStatus: string(acct.VerificationStatus),
		Standing:           string(acct.Standing),
		StandingReason:     acct.StandingReason,
		StandingSetBy:      acct.StandingSetBy.String(),
		StandingSetAt:      acct.StandingSetAt,
		StandingExpiresAt:  acct.StandingExpiresAt,
		CreatedAt:          acct.CreatedAt,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		if len(actions) == 0 {
			return nil
		}
		var existing int64
		if err := tx.Model(&StandingActionRow{}).Where("user_id = ?", row.ID).Count(&existing).Error; err != nil {
			return err
		}
		rows := make([]StandingActionRow, 0, len(actions))
		for i, a := range actions {
			rows = append(rows, StandingActionRow{
				ID:           a.ID,
				UserID:       row.ID,
				Seq:          int(existing) + i,
				ModeratorID:  a.ModeratorID.String(),
				Kind:         string(a.Kind),
				Reason:       a.Reason,
				DurationDays: a.DurationDays,
				Timestamp:    a.Timestamp,
				ExpiresAt:    a.ExpiresAt,
			})
		}
		return tx.Create(&rows).Error
	})
}

func (s *GormStore) AccountHistory(ctx context.Context, userID principal.ID) ([]standing.Action, error) {
	var rows []StandingActionRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID.String()).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]standing.Action, 0, len(rows))
	for _, r := range rows {
		out = append(out, standing.Action{
			ID:           r.ID,
			UserID:       principal.ID(r.UserID),
			ModeratorID:  principal.ID(r.ModeratorID),
			Kind:         standing.ActionKind(r.Kind),
			Reason:       r.Reason,
			DurationDays: r.DurationDays,
			Timestamp:    r.Timestamp,
			ExpiresAt:    r.ExpiresAt,
		})
	}
	return out, nil
}

func (s *GormStore) ListAccounts(ctx context.Context) ([]standing.Account, error) {
	var rows []AccountRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]standing.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, accountFromRow(r))
	}
	return out, nil
}
