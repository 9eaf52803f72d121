package models

// EdgeOp says how a FriendEdge is written inside a friendship transaction.
type EdgeOp int

const (
	// EdgeMirror sets only Streaks and LastStreakDate, creating the edge if it is missing.
	EdgeMirror EdgeOp = iota
	// EdgeUpsert writes the whole edge.
	EdgeUpsert
	// EdgeDelete removes the edge.
	EdgeDelete
)

func (op EdgeOp) String() string {
	switch op {
	case EdgeMirror:
		return "mirror"
	case EdgeUpsert:
		return "upsert"
	case EdgeDelete:
		return "delete"
	}
	return "unknown"
}

type EdgeChange struct {
	Op   EdgeOp
	Edge FriendEdge
}

// FriendshipChange is everything one friendship transaction commits: the
// friendship record and the edges derived from it, all or nothing.
type FriendshipChange struct {
	Friendship *Friendship
	Edges      []EdgeChange
}

// MirrorEdges returns the mirror writes that copy f's streak onto both members' edges.
func MirrorEdges(f *Friendship) []EdgeChange {
	return []EdgeChange{
		{Op: EdgeMirror, Edge: FriendEdge{
			OwnerID:        f.UserA,
			FriendID:       f.UserB,
			SourcePairID:   f.PairID,
			Streaks:        f.Streak.Count,
			LastStreakDate: f.Streak.LastDayKey,
		}},
		{Op: EdgeMirror, Edge: FriendEdge{
			OwnerID:        f.UserB,
			FriendID:       f.UserA,
			SourcePairID:   f.PairID,
			Streaks:        f.Streak.Count,
			LastStreakDate: f.Streak.LastDayKey,
		}},
	}
}
