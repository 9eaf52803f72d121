package repositories

import (
	"context"

	"github.com/mroshb/catchup/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var edgeKey = []clause.Column{{Name: "owner_id"}, {Name: "friend_id"}}

type FriendRepository struct {
	db *gorm.DB
}

func NewFriendRepository(db *gorm.DB) *FriendRepository {
	return &FriendRepository{db: db}
}

// GetFriendship returns nil when the pair has no record.
func (r *FriendRepository) GetFriendship(ctx context.Context, pairID string) (*models.Friendship, error) {
	var friendship models.Friendship
	result := r.db.WithContext(ctx).Where("pair_id = ?", pairID).Limit(1).Find(&friendship)
	if result.Error != nil {
		return nil, translateError(result.Error, "failed to get friendship")
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &friendship, nil
}

// UpdateFriendship locks the friendship row and commits fn's change, edges
// included, in the same transaction. A first insert that races another
// returns a conflict so the caller re-runs fn against the winner.
func (r *FriendRepository) UpdateFriendship(ctx context.Context, pairID string, fn func(current *models.Friendship) (*models.FriendshipChange, error)) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Friendship
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("pair_id = ?", pairID).Limit(1).Find(&existing)
		if result.Error != nil {
			return result.Error
		}

		var current *models.Friendship
		if result.RowsAffected > 0 {
			current = &existing
		}

		change, err := fn(current)
		if err != nil {
			return err
		}
		if change == nil {
			return nil
		}

		if change.Friendship != nil {
			next := *change.Friendship
			next.PairID = pairID
			if current == nil {
				err = tx.Create(&next).Error
			} else {
				err = tx.Save(&next).Error
			}
			if err != nil {
				return err
			}
		}

		for _, ec := range change.Edges {
			if err := applyEdge(tx, ec); err != nil {
				return err
			}
		}
		return nil
	})
	return translateError(err, "failed to update friendship")
}

func applyEdge(tx *gorm.DB, ec models.EdgeChange) error {
	edge := ec.Edge
	switch ec.Op {
	case models.EdgeDelete:
		return tx.Where("owner_id = ? AND friend_id = ?", edge.OwnerID, edge.FriendID).
			Delete(&models.FriendEdge{}).Error
	case models.EdgeUpsert:
		return tx.Clauses(clause.OnConflict{Columns: edgeKey, UpdateAll: true}).Create(&edge).Error
	default:
		// Mirror: only the streak columns change on an existing edge.
		return tx.Clauses(clause.OnConflict{
			Columns:   edgeKey,
			DoUpdates: clause.AssignmentColumns([]string{"streaks", "last_streak_date"}),
		}).Create(&edge).Error
	}
}

// ListFriends returns userID's edges, most recent first
func (r *FriendRepository) ListFriends(ctx context.Context, userID string) ([]models.FriendEdge, error) {
	friends := []models.FriendEdge{}
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", userID).
		Order("since DESC, friend_id ASC").
		Find(&friends).Error
	if err != nil {
		return nil, translateError(err, "failed to list friends")
	}
	return friends, nil
}

// ListIncomingRequests retrieves pending friend requests addressed to userID
func (r *FriendRepository) ListIncomingRequests(ctx context.Context, userID string) ([]models.Friendship, error) {
	requests := []models.Friendship{}
	err := r.db.WithContext(ctx).
		Where("user_b = ? AND status = ?", userID, models.FriendshipStatusPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, translateError(err, "failed to list friend requests")
	}
	return requests, nil
}
