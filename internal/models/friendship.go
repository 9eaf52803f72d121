package models

import (
	"strings"
	"time"

	"github.com/mroshb/catchup/pkg/errors"
	"gorm.io/gorm"
)

// Friendship is the single source of truth for a pair's shared streak.
// UserA is the requester; the order is fixed at creation.
type Friendship struct {
	PairID      string      `gorm:"primaryKey;type:varchar(260)" json:"pairId"`
	UserA       string      `gorm:"type:varchar(128);not null;index" json:"userA"`
	UserB       string      `gorm:"type:varchar(128);not null;index:idx_friendship_incoming" json:"userB"`
	Status      string      `gorm:"type:varchar(20);not null;default:'pending';index:idx_friendship_incoming" json:"status"`
	RequestedBy string      `gorm:"type:varchar(128);not null" json:"requestedBy"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	Streak      StreakState `gorm:"embedded;embeddedPrefix:streak_" json:"streak"`
}

// Friendship status constants
const (
	FriendshipStatusPending  = "pending"
	FriendshipStatusAccepted = "accepted"
	FriendshipStatusDeclined = "declined"
	FriendshipStatusRemoved  = "removed"
)

// PairSeparator joins the two member ids of a pair id.
const PairSeparator = "__"

const maxUserIDLength = 128

// PairID returns the order-independent id of the pair (a, b).
func PairID(a, b string) string {
	if a < b {
		return a + PairSeparator + b
	}
	return b + PairSeparator + a
}

// ValidateUserID rejects ids that could make PairID ambiguous or break a
// document path. For valid ids the separator occurs exactly once in a pair id.
func ValidateUserID(id string) error {
	switch {
	case id == "":
		return errors.New(errors.ErrCodeValidation, "user id is required")
	case len(id) > maxUserIDLength:
		return errors.New(errors.ErrCodeValidation, "user id is too long")
	case strings.Contains(id, PairSeparator), strings.Contains(id, "/"):
		return errors.New(errors.ErrCodeValidation, "user id contains a reserved sequence")
	case strings.HasPrefix(id, "_"), strings.HasSuffix(id, "_"):
		return errors.New(errors.ErrCodeValidation, "user id must not start or end with an underscore")
	}
	return nil
}

func (f *Friendship) IsAccepted() bool {
	return f.Status == FriendshipStatusAccepted
}

// Involves reports whether userID is a member of the pair.
func (f *Friendship) Involves(userID string) bool {
	return f.UserA == userID || f.UserB == userID
}

// Other returns the member that is not userID.
func (f *Friendship) Other(userID string) string {
	if f.UserA == userID {
		return f.UserB
	}
	return f.UserA
}

func (f *Friendship) BeforeSave(tx *gorm.DB) error {
	switch f.Status {
	case FriendshipStatusPending, FriendshipStatusAccepted, FriendshipStatusDeclined, FriendshipStatusRemoved:
	default:
		return gorm.ErrInvalidData
	}
	if f.PairID != PairID(f.UserA, f.UserB) {
		return gorm.ErrInvalidData
	}
	return nil
}

func (Friendship) TableName() string {
	return "friendships"
}

// FriendEdge is one user's denormalized view of an accepted friendship.
// Streaks and LastStreakDate mirror the Friendship and are only written in
// the same transaction as it.
type FriendEdge struct {
	OwnerID        string    `gorm:"primaryKey;type:varchar(128)" json:"-"`
	FriendID       string    `gorm:"primaryKey;type:varchar(128)" json:"friendUid"`
	FriendName     string    `gorm:"type:varchar(255)" json:"friendName"`
	FriendUsername string    `gorm:"type:varchar(64)" json:"friendUsername"`
	Since          time.Time `gorm:"index" json:"since"`
	SourcePairID   string    `gorm:"type:varchar(260);index" json:"sourcePairId"`
	Streaks        int       `gorm:"default:0;not null" json:"streaks"`
	LastStreakDate string    `gorm:"type:varchar(10)" json:"lastStreakDate,omitempty"`
}

func (FriendEdge) TableName() string {
	return "friend_edges"
}
