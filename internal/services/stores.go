package services

import (
	"context"

	"github.com/mroshb/catchup/internal/models"
)

// UserStore reads and atomically updates user records.
type UserStore interface {
	// GetUser returns a NOT_FOUND AppError when the user does not exist.
	GetUser(ctx context.Context, id string) (*models.User, error)
	// CreateUser returns an ALREADY_EXISTS AppError when the id is taken.
	CreateUser(ctx context.Context, user *models.User) error
	// UpdateUser runs fn against the current record and commits the result
	// atomically. fn may run more than once and must not touch the store.
	UpdateUser(ctx context.Context, id string, fn func(user *models.User) error) error
}

// FriendshipStore owns pairwise friendships and the per-user edges derived from them.
type FriendshipStore interface {
	// GetFriendship returns nil, nil when no record exists for pairID.
	GetFriendship(ctx context.Context, pairID string) (*models.Friendship, error)
	// UpdateFriendship reads the friendship (nil when absent), passes it to fn
	// and commits the returned change in one transaction. A nil change
	// commits nothing. fn may run more than once and must not touch the store.
	UpdateFriendship(ctx context.Context, pairID string, fn func(current *models.Friendship) (*models.FriendshipChange, error)) error
	// ListFriends returns userID's edges, most recent first.
	ListFriends(ctx context.Context, userID string) ([]models.FriendEdge, error)
	// ListIncomingRequests returns pending friendships addressed to userID.
	ListIncomingRequests(ctx context.Context, userID string) ([]models.Friendship, error)
}
