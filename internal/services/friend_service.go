package services

import (
	"context"
	"time"

	"github.com/mroshb/catchup/internal/metrics"
	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/internal/security"
	"github.com/mroshb/catchup/pkg/errors"
	"github.com/mroshb/catchup/pkg/logger"
)

type FriendService struct {
	users       UserStore
	friendships FriendshipStore
	metrics     *metrics.Metrics
	now         func() time.Time
	maxAttempts int
	backoff     time.Duration
}

type FriendOption func(*FriendService)

func WithFriendClock(now func() time.Time) FriendOption {
	return func(s *FriendService) { s.now = now }
}

func WithFriendMetrics(m *metrics.Metrics) FriendOption {
	return func(s *FriendService) { s.metrics = m }
}

func NewFriendService(users UserStore, friendships FriendshipStore, opts ...FriendOption) *FriendService {
	s := &FriendService{
		users:       users,
		friendships: friendships,
		now:         time.Now,
		maxAttempts: 3,
		backoff:     25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendRequest creates a pending friendship from -> to. A pair that was
// declined or removed may be requested again and starts over with no streak.
func (s *FriendService) SendRequest(ctx context.Context, from, to string) (*models.Friendship, error) {
	if err := models.ValidateUserID(from); err != nil {
		return nil, err
	}
	if err := models.ValidateUserID(to); err != nil {
		return nil, err
	}
	if from == to {
		return nil, errors.New(errors.ErrCodeValidation, "cannot send a friend request to yourself")
	}
	for _, id := range []string{from, to} {
		if _, err := s.users.GetUser(ctx, id); err != nil {
			return nil, err
		}
	}

	pairID := models.PairID(from, to)
	var created models.Friendship
	err := s.update(ctx, pairID, func(current *models.Friendship) (*models.FriendshipChange, error) {
		if current != nil {
			switch current.Status {
			case models.FriendshipStatusAccepted:
				return nil, errors.New(errors.ErrCodeAlreadyExists, "already friends")
			case models.FriendshipStatusPending:
				return nil, errors.New(errors.ErrCodeAlreadyExists, "friend request already exists")
			}
		}

		created = models.Friendship{
			PairID:      pairID,
			UserA:       from,
			UserB:       to,
			Status:      models.FriendshipStatusPending,
			RequestedBy: from,
			CreatedAt:   s.now(),
		}
		return &models.FriendshipChange{Friendship: &created}, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Friend request sent", "pair_id", pairID, "from", from, "to", to)
	return &created, nil
}

// Accept moves a pending request to accepted and creates both friend edges.
// Only the addressee may accept.
func (s *FriendService) Accept(ctx context.Context, pairID, actingUserID string) (*models.Friendship, error) {
	if err := models.ValidateUserID(actingUserID); err != nil {
		return nil, err
	}
	current, err := s.friendships.GetFriendship(ctx, pairID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "friend request not found")
	}

	// Display metadata is read outside the transaction; it is a denormalized copy.
	profileA := s.profile(ctx, current.UserA)
	profileB := s.profile(ctx, current.UserB)

	var accepted models.Friendship
	err = s.update(ctx, pairID, func(current *models.Friendship) (*models.FriendshipChange, error) {
		if current == nil {
			return nil, errors.New(errors.ErrCodeNotFound, "friend request not found")
		}
		if current.UserB != actingUserID {
			return nil, errors.New(errors.ErrCodeForbidden, "only the addressee can accept this request")
		}
		if current.Status != models.FriendshipStatusPending {
			return nil, errors.New(errors.ErrCodeInvalidTransition, "friend request is "+current.Status)
		}

		accepted = *current
		accepted.Status = models.FriendshipStatusAccepted
		since := s.now()

		return &models.FriendshipChange{
			Friendship: &accepted,
			Edges: []models.EdgeChange{
				{Op: models.EdgeUpsert, Edge: acceptedEdge(&accepted, accepted.UserA, profileB, since)},
				{Op: models.EdgeUpsert, Edge: acceptedEdge(&accepted, accepted.UserB, profileA, since)},
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Friend request accepted", "pair_id", pairID, "user_id", actingUserID)
	return &accepted, nil
}

// Decline moves a pending request to declined. Only the addressee may decline.
func (s *FriendService) Decline(ctx context.Context, pairID, actingUserID string) (*models.Friendship, error) {
	if err := models.ValidateUserID(actingUserID); err != nil {
		return nil, err
	}

	var declined models.Friendship
	err := s.update(ctx, pairID, func(current *models.Friendship) (*models.FriendshipChange, error) {
		if current == nil {
			return nil, errors.New(errors.ErrCodeNotFound, "friend request not found")
		}
		if current.UserB != actingUserID {
			return nil, errors.New(errors.ErrCodeForbidden, "only the addressee can decline this request")
		}
		if current.Status != models.FriendshipStatusPending {
			return nil, errors.New(errors.ErrCodeInvalidTransition, "friend request is "+current.Status)
		}

		declined = *current
		declined.Status = models.FriendshipStatusDeclined
		return &models.FriendshipChange{Friendship: &declined}, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Friend request declined", "pair_id", pairID, "user_id", actingUserID)
	return &declined, nil
}

// Remove ends an accepted friendship. Both edges are deleted and the record
// is kept as a removed tombstone.
func (s *FriendService) Remove(ctx context.Context, a, b string) error {
	if err := models.ValidateUserID(a); err != nil {
		return err
	}
	if err := models.ValidateUserID(b); err != nil {
		return err
	}
	if a == b {
		return errors.New(errors.ErrCodeValidation, "cannot remove yourself")
	}

	pairID := models.PairID(a, b)
	err := s.update(ctx, pairID, func(current *models.Friendship) (*models.FriendshipChange, error) {
		if current == nil {
			return nil, errors.New(errors.ErrCodeNotFound, "friendship not found")
		}
		if !current.IsAccepted() {
			return nil, errors.New(errors.ErrCodeInvalidTransition, "friendship is "+current.Status)
		}

		removed := *current
		removed.Status = models.FriendshipStatusRemoved
		return &models.FriendshipChange{
			Friendship: &removed,
			Edges: []models.EdgeChange{
				{Op: models.EdgeDelete, Edge: models.FriendEdge{OwnerID: a, FriendID: b}},
				{Op: models.EdgeDelete, Edge: models.FriendEdge{OwnerID: b, FriendID: a}},
			},
		}, nil
	})
	if err != nil {
		return err
	}

	logger.Info("Friendship removed", "pair_id", pairID, "user_id", a)
	return nil
}

// Friends returns userID's friend edges, newest first.
func (s *FriendService) Friends(ctx context.Context, userID string) ([]models.FriendEdge, error) {
	if err := models.ValidateUserID(userID); err != nil {
		return nil, err
	}
	return s.friendships.ListFriends(ctx, userID)
}

// IncomingRequests returns pending requests addressed to userID.
func (s *FriendService) IncomingRequests(ctx context.Context, userID string) ([]models.Friendship, error) {
	if err := models.ValidateUserID(userID); err != nil {
		return nil, err
	}
	return s.friendships.ListIncomingRequests(ctx, userID)
}

func (s *FriendService) update(ctx context.Context, pairID string, fn func(*models.Friendship) (*models.FriendshipChange, error)) error {
	return retryConflicts(ctx, s.maxAttempts, s.backoff, s.metrics, func() error {
		return s.friendships.UpdateFriendship(ctx, pairID, fn)
	})
}

type friendProfile struct {
	name     string
	username string
}

// profile returns sanitized display metadata, empty if the user cannot be loaded.
func (s *FriendService) profile(ctx context.Context, userID string) friendProfile {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		logger.Warn("Friend profile unavailable, using empty metadata", "user_id", userID, "error", err)
		return friendProfile{}
	}
	return friendProfile{
		name:     security.SanitizeDisplayName(user.DisplayName),
		username: security.SanitizeUsername(user.Username),
	}
}

func acceptedEdge(f *models.Friendship, owner string, friend friendProfile, since time.Time) models.FriendEdge {
	return models.FriendEdge{
		OwnerID:        owner,
		FriendID:       f.Other(owner),
		FriendName:     friend.name,
		FriendUsername: friend.username,
		Since:          since,
		SourcePairID:   f.PairID,
		Streaks:        f.Streak.Count,
		LastStreakDate: f.Streak.LastDayKey,
	}
}
