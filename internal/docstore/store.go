// Package docstore stores users and friendships in Cloud Firestore using the
// layout the mobile client reads: users/{uid}, users/{uid}/friends/{fid} and
// friendships/{pairId}.
package docstore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/pkg/errors"
	"github.com/mroshb/catchup/pkg/logger"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// transactionAttempts bounds Firestore's own optimistic retries before it
// reports Aborted, which surfaces as a conflict.
const transactionAttempts = 5

type Store struct {
	client *firestore.Client
	now    func() time.Time
}

func New(client *firestore.Client) *Store {
	return &Store{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Open creates a Firestore client through the Firebase Admin SDK. An empty
// credentialsFile uses application default credentials. FIRESTORE_EMULATOR_HOST
// is honoured by the client.
func Open(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to initialize firebase app")
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to create firestore client")
	}

	logger.Info("Firestore connected", "project_id", projectID)
	return New(client), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Ping issues a one-document read to check reachability.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Collection(usersCollection).Limit(1).Documents(ctx).GetAll()
	return translateError(err, "firestore unreachable")
}

func (s *Store) userRef(id string) *firestore.DocumentRef {
	return s.client.Collection(usersCollection).Doc(id)
}

func (s *Store) edgeRef(owner, friend string) *firestore.DocumentRef {
	return s.userRef(owner).Collection(friendsCollection).Doc(friend)
}

func (s *Store) friendshipRef(pairID string) *firestore.DocumentRef {
	return s.client.Collection(friendshipsCollection).Doc(pairID)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	snap, err := s.userRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if err != nil {
		return nil, translateError(err, "failed to get user")
	}
	user := decodeUser(id, snap.Data())
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid user")
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.userRef(user.ID).Create(ctx, encodeNewUser(user))
	if status.Code(err) == codes.AlreadyExists {
		return errors.New(errors.ErrCodeAlreadyExists, "user already exists")
	}
	return translateError(err, "failed to create user")
}

// UpdateUser merges fn's result into the user document, so fields this
// service does not model are preserved.
func (s *Store) UpdateUser(ctx context.Context, id string, fn func(user *models.User) error) error {
	ref := s.userRef(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return errors.New(errors.ErrCodeNotFound, "user not found")
		}
		if err != nil {
			return err
		}

		user := decodeUser(id, snap.Data())
		if err := fn(&user); err != nil {
			return err
		}
		user.ID = id
		if err := user.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrCodeValidation, "invalid user")
		}
		user.UpdatedAt = s.now()
		return tx.Set(ref, encodeUser(&user), firestore.MergeAll)
	}, firestore.MaxAttempts(transactionAttempts))
	return translateError(err, "failed to update user")
}

func (s *Store) GetFriendship(ctx context.Context, pairID string) (*models.Friendship, error) {
	snap, err := s.friendshipRef(pairID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to get friendship")
	}
	f := decodeFriendship(pairID, snap.Data())
	return &f, nil
}

// UpdateFriendship reads the friendship and writes it together with its edge
// changes in one Firestore transaction.
func (s *Store) UpdateFriendship(ctx context.Context, pairID string, fn func(current *models.Friendship) (*models.FriendshipChange, error)) error {
	ref := s.friendshipRef(pairID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current *models.Friendship
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			f := decodeFriendship(pairID, snap.Data())
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
			if err := tx.Set(ref, encodeFriendship(&next), firestore.MergeAll); err != nil {
				return err
			}
		}

		for _, ec := range change.Edges {
			if err := s.applyEdge(tx, ec); err != nil {
				return err
			}
		}
		return nil
	}, firestore.MaxAttempts(transactionAttempts))
	return translateError(err, "failed to update friendship")
}

func (s *Store) applyEdge(tx *firestore.Transaction, ec models.EdgeChange) error {
	ref := s.edgeRef(ec.Edge.OwnerID, ec.Edge.FriendID)
	switch ec.Op {
	case models.EdgeDelete:
		return tx.Delete(ref)
	case models.EdgeUpsert:
		return tx.Set(ref, encodeEdge(&ec.Edge))
	default:
		// MergeAll creates the edge if it is missing and keeps display metadata.
		return tx.Set(ref, encodeMirror(&ec.Edge), firestore.MergeAll)
	}
}

// ListFriends sorts in memory; a Firestore OrderBy would drop edges that
// lack a since field.
func (s *Store) ListFriends(ctx context.Context, userID string) ([]models.FriendEdge, error) {
	snaps, err := s.userRef(userID).Collection(friendsCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, translateError(err, "failed to list friends")
	}

	friends := make([]models.FriendEdge, 0, len(snaps))
	for _, snap := range snaps {
		friends = append(friends, decodeEdge(userID, snap.Ref.ID, snap.Data()))
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
	snaps, err := s.client.Collection(friendshipsCollection).
		Where("userB", "==", userID).
		Where("status", "==", models.FriendshipStatusPending).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, translateError(err, "failed to list friend requests")
	}

	requests := make([]models.Friendship, 0, len(snaps))
	for _, snap := range snaps {
		requests = append(requests, decodeFriendship(snap.Ref.ID, snap.Data()))
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}
