package docstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/internal/services"
	"github.com/mroshb/catchup/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	_ services.UserStore       = (*Store)(nil)
	_ services.FriendshipStore = (*Store)(nil)
)

func TestDecodeUser_Lenient(t *testing.T) {
	created := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	data := map[string]interface{}{
		"displayName": "Ava",
		"createdAt":   created,
		"stats": map[string]interface{}{
			"streakDays":     float64(4),
			"lastStreakDate": "2025-12-01",
			"answersCount":   int64(12),
		},
		"settings": map[string]interface{}{"timezone": "Asia/Bangkok", "pushEnabled": true},
	}

	u := decodeUser("u1", data)
	if u.ID != "u1" || u.DisplayName != "Ava" || u.Timezone != "Asia/Bangkok" {
		t.Errorf("decodeUser() = %+v", u)
	}
	if u.Streak.Count != 4 || u.Streak.LastDayKey != "2025-12-01" {
		t.Errorf("Streak = %+v, want (4, 2025-12-01)", u.Streak)
	}
	if !u.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", u.CreatedAt, created)
	}

	unknownZone := decodeUser("u3", map[string]interface{}{"settings": map[string]interface{}{"timezone": "GMT+7"}})
	if unknownZone.Timezone != "UTC" {
		t.Errorf("decodeUser(GMT+7).Timezone = %q, want UTC", unknownZone.Timezone)
	}
	if err := unknownZone.Validate(); err != nil {
		t.Errorf("decoded user fails Validate: %v", err)
	}

	empty := decodeUser("u2", map[string]interface{}{"stats": "garbage"})
	if empty.Timezone != "UTC" || empty.Streak != (models.StreakState{}) {
		t.Errorf("decodeUser(sparse) = %+v, want UTC and zero streak", empty)
	}
}

func TestEncodeNewUser_SignupDefaults(t *testing.T) {
	u := &models.User{ID: "u1", DisplayName: "Ava", Timezone: "Asia/Tokyo"}
	doc := encodeNewUser(u)

	stats := doc["stats"].(map[string]interface{})
	settings := doc["settings"].(map[string]interface{})
	if stats["answersCount"] != 0 || stats["friendsCount"] != 0 || stats["streakDays"] != 0 {
		t.Errorf("stats = %v, want zero counters", stats)
	}
	if settings["inAppNotification"] != true || settings["pushEnabled"] != true || settings["timezone"] != "Asia/Tokyo" {
		t.Errorf("settings = %v", settings)
	}

	// Updates merge into client-owned counters and must not reset them.
	update := encodeUser(u)
	if _, ok := update["stats"].(map[string]interface{})["answersCount"]; ok {
		t.Error("encodeUser writes answersCount")
	}
	if _, ok := update["settings"].(map[string]interface{})["pushEnabled"]; ok {
		t.Error("encodeUser writes pushEnabled")
	}
}

func TestEncodeDecodeFriendship(t *testing.T) {
	f := models.Friendship{
		PairID:      "a__b",
		UserA:       "b",
		UserB:       "a",
		Status:      models.FriendshipStatusAccepted,
		RequestedBy: "b",
		Streak:      models.StreakState{Count: 7, LastDayKey: "2025-12-03"},
	}
	data := encodeFriendship(&f)
	if data["streak"] != 7 || data["lastStreakDate"] != "2025-12-03" {
		t.Errorf("encodeFriendship() streak fields = %v/%v", data["streak"], data["lastStreakDate"])
	}

	// Firestore returns integers as int64.
	data["streak"] = int64(7)
	got := decodeFriendship("a__b", data)
	if got != f {
		t.Errorf("decodeFriendship() = %+v, want %+v", got, f)
	}

	if s := decodeFriendship("x__y", map[string]interface{}{}).Status; s != models.FriendshipStatusPending {
		t.Errorf("missing status decoded as %q, want pending", s)
	}
}

func TestEncodeMirror_OnlyStreakFields(t *testing.T) {
	edge := models.FriendEdge{OwnerID: "a", FriendID: "b", FriendName: "B", SourcePairID: "a__b", Streaks: 2, LastStreakDate: "2025-12-02"}
	data := encodeMirror(&edge)
	for _, key := range []string{"friendName", "friendUsername", "since"} {
		if _, ok := data[key]; ok {
			t.Errorf("mirror write contains %q", key)
		}
	}
	decoded := decodeEdge("a", "ignored", encodeEdge(&edge))
	if decoded != edge {
		t.Errorf("decodeEdge(encodeEdge()) = %+v, want %+v", decoded, edge)
	}
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"Aborted", status.Error(codes.Aborted, "contention"), errors.ErrCodeTransactionConflict},
		{"Already exists", status.Error(codes.AlreadyExists, "exists"), errors.ErrCodeTransactionConflict},
		{"Unavailable", status.Error(codes.Unavailable, "down"), errors.ErrCodeStoreUnavailable},
		{"Deadline", status.Error(codes.DeadlineExceeded, "slow"), errors.ErrCodeStoreUnavailable},
		{"Quota", status.Error(codes.ResourceExhausted, "quota"), errors.ErrCodeStoreUnavailable},
		{"Wrapped unavailable", fmt.Errorf("commit: %w", status.Error(codes.Unavailable, "down")), errors.ErrCodeStoreUnavailable},
		{"Context cancelled", context.Canceled, errors.ErrCodeStoreUnavailable},
		{"Permission", status.Error(codes.PermissionDenied, "rules"), errors.ErrCodeForbidden},
		{"Unknown", stderrors.New("boom"), errors.ErrCodeInternalError},
		{"AppError passes through", errors.New(errors.ErrCodeInvalidTransition, "no"), errors.ErrCodeInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.CodeOf(translateError(tt.err, "op failed")); got != tt.code {
				t.Errorf("translateError() code = %q, want %q", got, tt.code)
			}
		})
	}
}

func openEmulator(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "catchup-test")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestStore_Emulator(t *testing.T) {
	s := openEmulator(t)
	ctx := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	a, b := "a"+suffix, "b"+suffix

	for _, id := range []string{a, b} {
		if err := s.CreateUser(ctx, &models.User{ID: id, DisplayName: id, Timezone: "UTC"}); err != nil {
			t.Fatalf("CreateUser(%s) error = %v", id, err)
		}
	}
	if err := s.CreateUser(ctx, &models.User{ID: a, Timezone: "UTC"}); !errors.Is(err, errors.ErrCodeAlreadyExists) {
		t.Errorf("duplicate CreateUser() error = %v, want ALREADY_EXISTS", err)
	}

	pairID := models.PairID(a, b)
	err := s.UpdateFriendship(ctx, pairID, func(current *models.Friendship) (*models.FriendshipChange, error) {
		if current != nil {
			return nil, fmt.Errorf("unexpected existing friendship")
		}
		f := &models.Friendship{UserA: a, UserB: b, Status: models.FriendshipStatusAccepted, RequestedBy: a, PairID: pairID}
		return &models.FriendshipChange{
			Friendship: f,
			Edges: []models.EdgeChange{
				{Op: models.EdgeUpsert, Edge: models.FriendEdge{OwnerID: a, FriendID: b, FriendName: "B", SourcePairID: pairID}},
				{Op: models.EdgeUpsert, Edge: models.FriendEdge{OwnerID: b, FriendID: a, FriendName: "A", SourcePairID: pairID}},
			},
		}, nil
	})
	if err != nil {
		t.Fatalf("UpdateFriendship(create) error = %v", err)
	}

	err = s.UpdateFriendship(ctx, pairID, func(current *models.Friendship) (*models.FriendshipChange, error) {
		next := *current
		next.Streak = models.StreakState{Count: 1, LastDayKey: "2025-12-01"}
		return &models.FriendshipChange{Friendship: &next, Edges: models.MirrorEdges(&next)}, nil
	})
	if err != nil {
		t.Fatalf("UpdateFriendship(mirror) error = %v", err)
	}

	friends, err := s.ListFriends(ctx, b)
	if err != nil {
		t.Fatalf("ListFriends() error = %v", err)
	}
	if len(friends) != 1 || friends[0].Streaks != 1 || friends[0].FriendName != "A" {
		t.Errorf("ListFriends(b) = %+v, want one edge, streak 1, name kept", friends)
	}
}
