package docstore

import (
	"time"

	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/internal/streak"
)

// Collection and field names of the document layout shared with the mobile client.
const (
	usersCollection       = "users"
	friendsCollection     = "friends"
	friendshipsCollection = "friendships"
)

func encodeUser(u *models.User) map[string]interface{} {
	return map[string]interface{}{
		"displayName": u.DisplayName,
		"username":    u.Username,
		"photoURL":    u.PhotoURL,
		"createdAt":   u.CreatedAt,
		"updatedAt":   u.UpdatedAt,
		"stats": map[string]interface{}{
			"streakDays":     u.Streak.Count,
			"lastStreakDate": u.Streak.LastDayKey,
		},
		"settings": map[string]interface{}{
			"timezone": u.Timezone,
		},
	}
}

// encodeNewUser is encodeUser plus the counters and notification settings the
// mobile client writes at signup. Updates use encodeUser so those fields, which
// the client owns, are merged untouched.
func encodeNewUser(u *models.User) map[string]interface{} {
	doc := encodeUser(u)
	stats := doc["stats"].(map[string]interface{})
	stats["answersCount"] = 0
	stats["friendsCount"] = 0
	settings := doc["settings"].(map[string]interface{})
	settings["inAppNotification"] = true
	settings["pushEnabled"] = true
	return doc
}

// decodeUser reads a user document leniently. Numbers may arrive as int64 or
// float64 depending on the writer; missing fields take zero values.
func decodeUser(id string, data map[string]interface{}) models.User {
	stats := mapValue(data["stats"])
	settings := mapValue(data["settings"])

	// The client writes settings.timezone, so an unknown zone is read as UTC.
	tz := streak.NormalizeTimezone(stringValue(settings["timezone"]))
	return models.User{
		ID:          id,
		DisplayName: stringValue(data["displayName"]),
		Username:    stringValue(data["username"]),
		PhotoURL:    stringValue(data["photoURL"]),
		Timezone:    tz,
		Streak: models.StreakState{
			Count:      intValue(stats["streakDays"]),
			LastDayKey: stringValue(stats["lastStreakDate"]),
		},
		CreatedAt: timeValue(data["createdAt"]),
		UpdatedAt: timeValue(data["updatedAt"]),
	}
}

func encodeFriendship(f *models.Friendship) map[string]interface{} {
	return map[string]interface{}{
		"userA":          f.UserA,
		"userB":          f.UserB,
		"status":         f.Status,
		"requestedBy":    f.RequestedBy,
		"createdAt":      f.CreatedAt,
		"updatedAt":      f.UpdatedAt,
		"streak":         f.Streak.Count,
		"lastStreakDate": f.Streak.LastDayKey,
	}
}

func decodeFriendship(pairID string, data map[string]interface{}) models.Friendship {
	status := stringValue(data["status"])
	if status == "" {
		status = models.FriendshipStatusPending
	}
	return models.Friendship{
		PairID:      pairID,
		UserA:       stringValue(data["userA"]),
		UserB:       stringValue(data["userB"]),
		Status:      status,
		RequestedBy: stringValue(data["requestedBy"]),
		CreatedAt:   timeValue(data["createdAt"]),
		UpdatedAt:   timeValue(data["updatedAt"]),
		Streak: models.StreakState{
			Count:      intValue(data["streak"]),
			LastDayKey: stringValue(data["lastStreakDate"]),
		},
	}
}

func encodeEdge(e *models.FriendEdge) map[string]interface{} {
	return map[string]interface{}{
		"friendUid":      e.FriendID,
		"friendName":     e.FriendName,
		"friendUsername": e.FriendUsername,
		"since":          e.Since,
		"sourcePairId":   e.SourcePairID,
		"streaks":        e.Streaks,
		"lastStreakDate": e.LastStreakDate,
	}
}

// encodeMirror holds only the fields a streak update may touch on an edge.
func encodeMirror(e *models.FriendEdge) map[string]interface{} {
	return map[string]interface{}{
		"friendUid":      e.FriendID,
		"sourcePairId":   e.SourcePairID,
		"streaks":        e.Streaks,
		"lastStreakDate": e.LastStreakDate,
	}
}

func decodeEdge(ownerID, friendID string, data map[string]interface{}) models.FriendEdge {
	if uid := stringValue(data["friendUid"]); uid != "" {
		friendID = uid
	}
	return models.FriendEdge{
		OwnerID:        ownerID,
		FriendID:       friendID,
		FriendName:     stringValue(data["friendName"]),
		FriendUsername: stringValue(data["friendUsername"]),
		Since:          timeValue(data["since"]),
		SourcePairID:   stringValue(data["sourcePairId"]),
		Streaks:        intValue(data["streaks"]),
		LastStreakDate: stringValue(data["lastStreakDate"]),
	}
}

func mapValue(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func timeValue(v interface{}) time.Time {
	t, _ := v.(time.Time)
	return t
}
