package services

import (
	"context"
	"testing"
	"time"

	"github.com/mroshb/catchup/internal/memstore"
	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/pkg/errors"
)

func newFriendFixture(t *testing.T) (*memstore.Store, *FriendService) {
	t.Helper()
	store := memstore.New()
	ctx := context.Background()
	for _, u := range []models.User{
		{ID: "alice", DisplayName: "<b>Alice</b>", Username: "@Alice", Timezone: "UTC"},
		{ID: "bob", DisplayName: "Bob", Username: "bob", Timezone: "UTC"},
		{ID: "carol", DisplayName: "Carol", Username: "carol", Timezone: "UTC"},
	} {
		u := u
		if err := store.CreateUser(ctx, &u); err != nil {
			t.Fatalf("CreateUser(%s) error = %v", u.ID, err)
		}
	}
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	return store, NewFriendService(store, store, WithFriendClock(func() time.Time { return now }))
}

func TestFriendLifecycle_RequestAcceptRemove(t *testing.T) {
	store, svc := newFriendFixture(t)
	ctx := context.Background()

	req, err := svc.SendRequest(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if req.PairID != "alice__bob" || req.UserA != "bob" || req.UserB != "alice" {
		t.Errorf("request = %+v, want pair alice__bob from bob to alice", req)
	}

	incoming, _ := svc.IncomingRequests(ctx, "alice")
	if len(incoming) != 1 || incoming[0].PairID != "alice__bob" {
		t.Errorf("IncomingRequests(alice) = %+v, want the pending request", incoming)
	}

	accepted, err := svc.Accept(ctx, req.PairID, "alice")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if !accepted.IsAccepted() {
		t.Errorf("status = %s, want accepted", accepted.Status)
	}

	bobEdge, ok := store.Edge("bob", "alice")
	if !ok {
		t.Fatal("bob->alice edge missing")
	}
	if bobEdge.FriendName != "Alice" || bobEdge.FriendUsername != "alice" {
		t.Errorf("bob->alice metadata = (%q, %q), want sanitized (Alice, alice)", bobEdge.FriendName, bobEdge.FriendUsername)
	}
	if bobEdge.Streaks != 0 || bobEdge.SourcePairID != "alice__bob" || bobEdge.Since.IsZero() {
		t.Errorf("bob->alice edge = %+v, want zero streak with source pair and since", bobEdge)
	}
	aliceEdge, _ := store.Edge("alice", "bob")
	if aliceEdge.FriendName != "Bob" {
		t.Errorf("alice->bob FriendName = %q, want Bob", aliceEdge.FriendName)
	}

	friends, _ := svc.Friends(ctx, "alice")
	if len(friends) != 1 || friends[0].FriendID != "bob" {
		t.Errorf("Friends(alice) = %+v, want [bob]", friends)
	}

	if err := svc.Remove(ctx, "alice", "bob"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := store.Edge("alice", "bob"); ok {
		t.Error("alice->bob edge survived removal")
	}
	if _, ok := store.Edge("bob", "alice"); ok {
		t.Error("bob->alice edge survived removal")
	}
	f, _ := store.GetFriendship(ctx, "alice__bob")
	if f == nil || f.Status != models.FriendshipStatusRemoved {
		t.Errorf("friendship = %+v, want removed tombstone", f)
	}
}

func TestSendRequest_Errors(t *testing.T) {
	_, svc := newFriendFixture(t)
	ctx := context.Background()
	if _, err := svc.SendRequest(ctx, "alice", "bob"); err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}

	tests := []struct {
		name     string
		from, to string
		code     string
	}{
		{"Duplicate pending", "alice", "bob", errors.ErrCodeAlreadyExists},
		{"Reverse direction pending", "bob", "alice", errors.ErrCodeAlreadyExists},
		{"Self request", "alice", "alice", errors.ErrCodeValidation},
		{"Unknown target", "alice", "zed", errors.ErrCodeNotFound},
		{"Invalid id", "alice", "a__b", errors.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendRequest(ctx, tt.from, tt.to)
			if got := errors.CodeOf(err); got != tt.code {
				t.Errorf("SendRequest(%s, %s) code = %q, want %q", tt.from, tt.to, got, tt.code)
			}
		})
	}
}

func TestSendRequest_AlreadyFriends(t *testing.T) {
	_, svc := newFriendFixture(t)
	ctx := context.Background()
	req, _ := svc.SendRequest(ctx, "alice", "bob")
	if _, err := svc.Accept(ctx, req.PairID, "bob"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	_, err := svc.SendRequest(ctx, "bob", "alice")
	if !errors.Is(err, errors.ErrCodeAlreadyExists) {
		t.Errorf("SendRequest() error = %v, want ALREADY_EXISTS", err)
	}
}

func TestAcceptDecline_Transitions(t *testing.T) {
	_, svc := newFriendFixture(t)
	ctx := context.Background()
	req, _ := svc.SendRequest(ctx, "alice", "bob")

	if _, err := svc.Accept(ctx, req.PairID, "alice"); !errors.Is(err, errors.ErrCodeForbidden) {
		t.Errorf("Accept by requester error = %v, want FORBIDDEN", err)
	}
	if _, err := svc.Decline(ctx, req.PairID, "carol"); !errors.Is(err, errors.ErrCodeForbidden) {
		t.Errorf("Decline by outsider error = %v, want FORBIDDEN", err)
	}
	if _, err := svc.Accept(ctx, "alice__zed", "zed"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Accept missing error = %v, want NOT_FOUND", err)
	}

	declined, err := svc.Decline(ctx, req.PairID, "bob")
	if err != nil {
		t.Fatalf("Decline() error = %v", err)
	}
	if declined.Status != models.FriendshipStatusDeclined {
		t.Errorf("status = %s, want declined", declined.Status)
	}
	if _, err := svc.Accept(ctx, req.PairID, "bob"); !errors.Is(err, errors.ErrCodeInvalidTransition) {
		t.Errorf("Accept after decline error = %v, want INVALID_TRANSITION", err)
	}
	if err := svc.Remove(ctx, "alice", "bob"); !errors.Is(err, errors.ErrCodeInvalidTransition) {
		t.Errorf("Remove of declined error = %v, want INVALID_TRANSITION", err)
	}
	if err := svc.Remove(ctx, "alice", "carol"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Remove of missing error = %v, want NOT_FOUND", err)
	}
}

func TestSendRequest_AfterRemovalStartsOver(t *testing.T) {
	store, svc := newFriendFixture(t)
	ctx := context.Background()
	store.PutFriendship(models.Friendship{
		PairID:      "alice__bob",
		UserA:       "alice",
		UserB:       "bob",
		Status:      models.FriendshipStatusRemoved,
		RequestedBy: "alice",
		Streak:      models.StreakState{Count: 9, LastDayKey: "2025-11-20"},
	})

	req, err := svc.SendRequest(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if req.Status != models.FriendshipStatusPending || req.UserA != "bob" {
		t.Errorf("request = %+v, want pending from bob", req)
	}
	if req.Streak != (models.StreakState{}) {
		t.Errorf("streak = %+v, want reset", req.Streak)
	}

	if _, err := svc.Accept(ctx, req.PairID, "alice"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	f, _ := store.GetFriendship(ctx, req.PairID)
	edge, _ := store.Edge("alice", "bob")
	if f.Streak.Count != edge.Streaks {
		t.Errorf("friendship streak %d and edge %d differ after accept", f.Streak.Count, edge.Streaks)
	}
}

func TestAccept_MissingProfileUsesEmptyMetadata(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	_ = store.CreateUser(ctx, &models.User{ID: "bob", DisplayName: "Bob", Timezone: "UTC"})
	store.PutFriendship(models.Friendship{
		PairID:      "alice__bob",
		UserA:       "alice",
		UserB:       "bob",
		Status:      models.FriendshipStatusPending,
		RequestedBy: "alice",
	})
	svc := NewFriendService(store, store)

	if _, err := svc.Accept(ctx, "alice__bob", "bob"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	edge, ok := store.Edge("bob", "alice")
	if !ok || edge.FriendName != "" {
		t.Errorf("bob->alice edge = %+v, want empty metadata", edge)
	}
}
