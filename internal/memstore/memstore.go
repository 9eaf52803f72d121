// Package memstore is an in-process store for local runs and tests. A single
// mutex serializes every transaction, which gives the same isolation the
// database backends provide per record.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/pkg/errors"
)

type Store struct {
	mu          sync.Mutex
	users       map[string]models.User
	friendships map[string]models.Friendship
	edges       map[string]map[string]models.FriendEdge // owner -> friend -> edge
	commits     int
	now         func() time.Time
}

func New() *Store {
	return &Store{
		users:       make(map[string]models.User),
		friendships: make(map[string]models.Friendship),
		edges:       make(map[string]map[string]models.FriendEdge),
		now:         time.Now,
	}
}

// SetClock replaces the clock used for CreatedAt/UpdatedAt stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to get user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to create user")
	}
	if err := user.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return errors.New(errors.ErrCodeAlreadyExists, "user already exists")
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, fn func(user *models.User) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to update user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[id]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "user not found")
	}
	next := current
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid user")
	}
	next.ID = id
	next.UpdatedAt = s.now()
	s.users[id] = next
	return nil
}

func (s *Store) GetFriendship(ctx context.Context, pairID string) (*models.Friendship, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to get friendship")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.friendships[pairID]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (s *Store) UpdateFriendship(ctx context.Context, pairID string, fn func(current *models.Friendship) (*models.FriendshipChange, error)) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to update friendship")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *models.Friendship
	if f, ok := s.friendships[pairID]; ok {
		current = &f
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
		if err := next.BeforeSave(nil); err != nil {
			return errors.Wrap(err, errors.ErrCodeValidation, "invalid friendship")
		}
		now := s.now()
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		next.UpdatedAt = now
		s.friendships[pairID] = next
	}

	for _, ec := range change.Edges {
		s.applyEdge(ec)
	}
	s.commits++
	return nil
}

func (s *Store) applyEdge(ec models.EdgeChange) {
	owner := ec.Edge.OwnerID
	switch ec.Op {
	case models.EdgeDelete:
		delete(s.edges[owner], ec.Edge.FriendID)
		return
	case models.EdgeUpsert:
		s.ownerEdges(owner)[ec.Edge.FriendID] = ec.Edge
	case models.EdgeMirror:
		edges := s.ownerEdges(owner)
		edge, ok := edges[ec.Edge.FriendID]
		if !ok {
			edge = ec.Edge
		}
		edge.Streaks = ec.Edge.Streaks
		edge.LastStreakDate = ec.Edge.LastStreakDate
		edges[ec.Edge.FriendID] = edge
	}
}

func (s *Store) ownerEdges(owner string) map[string]models.FriendEdge {
	edges, ok := s.edges[owner]
	if !ok {
		edges = make(map[string]models.FriendEdge)
		s.edges[owner] = edges
	}
	return edges
}

func (s *Store) ListFriends(ctx context.Context, userID string) ([]models.FriendEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to list friends")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	friends := make([]models.FriendEdge, 0, len(s.edges[userID]))
	for _, edge := range s.edges[userID] {
		friends = append(friends, edge)
	}
	sort.Slice(friends, func(i, j int) bool {
		if friends[i].Since.Equal(friends[j].Since) {
			return friends[i].FriendID < friends[j].FriendID
		}
		return friends[i].Since.After(friends[j].Since)
	})
	return friends, nil
}

func (s *Store) ListIncomingRequests(ctx context.Context, userID string) ([]models.Friendship, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to list friend requests")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := []models.Friendship{}
	for _, f := range s.friendships {
		if f.UserB == userID && f.Status == models.FriendshipStatusPending {
			requests = append(requests, f)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}

// Edge returns owner's edge to friend.
func (s *Store) Edge(owner, friend string) (models.FriendEdge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge, ok := s.edges[owner][friend]
	return edge, ok
}

// Commits counts friendship transactions that wrote something.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// PutUser stores user as is, bypassing validation. Used to seed fixtures.
func (s *Store) PutUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// PutFriendship stores f as is, bypassing lifecycle rules. Used to seed fixtures.
func (s *Store) PutFriendship(f models.Friendship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friendships[f.PairID] = f
}

// PutEdge stores edge as is. Used to seed fixtures.
func (s *Store) PutEdge(edge models.FriendEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerEdges(edge.OwnerID)[edge.FriendID] = edge
}
