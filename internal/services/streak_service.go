package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/mroshb/catchup/internal/metrics"
	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/internal/streak"
	"github.com/mroshb/catchup/pkg/errors"
	"github.com/mroshb/catchup/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Unit kinds reported by propagation.
const (
	UnitSelf   = "self"
	UnitFriend = "friend"
)

// Outcome of one propagation unit.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// AnswerSubmission triggers propagation once the answer itself is stored.
type AnswerSubmission struct {
	UserID string `json:"userId"`
	// Timezone of the submitter. Empty means the user's stored timezone.
	Timezone   string    `json:"timezone"`
	Recipients []string  `json:"recipients"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// UnitResult is the outcome of one independent atomic update.
type UnitResult struct {
	Unit      string             `json:"unit"`
	UserID    string             `json:"userId"`
	PairID    string             `json:"pairId,omitempty"`
	Outcome   Outcome            `json:"outcome"`
	Streak    models.StreakState `json:"streak"`
	Error     string             `json:"error,omitempty"`
	Retryable bool               `json:"retryable,omitempty"`
	Err       error              `json:"-"`
}

func (r UnitResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

func (r *UnitResult) fail(err error) {
	r.Outcome = OutcomeFailed
	r.Err = err
	r.Error = err.Error()
	r.Retryable = errors.IsRetryable(err)
}

// UnitError tags a failure with the unit it belongs to so callers can retry selectively.
type UnitError struct {
	Unit   string
	UserID string
	Err    error
}

func (e *UnitError) Error() string {
	if e.Unit == UnitSelf {
		return fmt.Sprintf("self streak for %s: %v", e.UserID, e.Err)
	}
	return fmt.Sprintf("friend streak with %s: %v", e.UserID, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// PropagationReport collects the outcome of every unit of one answer.
type PropagationReport struct {
	UserID   string       `json:"userId"`
	Timezone string       `json:"timezone"`
	DayKey   string       `json:"dayKey"`
	Self     UnitResult   `json:"self"`
	Friends  []UnitResult `json:"friends"`
}

// Failures returns every failed unit, self first.
func (r *PropagationReport) Failures() []UnitResult {
	var failed []UnitResult
	if r.Self.Failed() {
		failed = append(failed, r.Self)
	}
	for _, f := range r.Friends {
		if f.Failed() {
			failed = append(failed, f)
		}
	}
	return failed
}

// Err joins all unit failures as *UnitError values, or returns nil.
func (r *PropagationReport) Err() error {
	var errs []error
	for _, f := range r.Failures() {
		errs = append(errs, &UnitError{Unit: f.Unit, UserID: f.UserID, Err: f.Err})
	}
	return stderrors.Join(errs...)
}

type StreakService struct {
	users       UserStore
	friendships FriendshipStore
	metrics     *metrics.Metrics
	now         func() time.Time
	fanOut      int
	maxAttempts int
	backoff     time.Duration
}

type StreakOption func(*StreakService)

func WithClock(now func() time.Time) StreakOption {
	return func(s *StreakService) { s.now = now }
}

// WithFanOut bounds how many recipients are updated concurrently.
func WithFanOut(n int) StreakOption {
	return func(s *StreakService) {
		if n > 0 {
			s.fanOut = n
		}
	}
}

// WithRetry sets how often a conflicting transaction is re-run and the base backoff.
func WithRetry(maxAttempts int, backoff time.Duration) StreakOption {
	return func(s *StreakService) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		s.backoff = backoff
	}
}

func WithMetrics(m *metrics.Metrics) StreakOption {
	return func(s *StreakService) { s.metrics = m }
}

func NewStreakService(users UserStore, friendships FriendshipStore, opts ...StreakOption) *StreakService {
	s := &StreakService{
		users:       users,
		friendships: friendships,
		now:         time.Now,
		fanOut:      8,
		maxAttempts: 3,
		backoff:     25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordAnswer propagates one answer to the submitter's own streak and to the
// shared streak with every recipient. Each unit commits or fails on its own;
// the returned error is only for an unusable submission.
//
// Cancelling ctx stops new recipient transactions from starting. Transactions
// already issued run to completion so no friendship is left with stale mirrors.
func (s *StreakService) RecordAnswer(ctx context.Context, sub AnswerSubmission) (*PropagationReport, error) {
	if err := models.ValidateUserID(sub.UserID); err != nil {
		return nil, err
	}
	started := time.Now()
	defer s.metrics.PropagationFinished(started)

	at := sub.AnsweredAt
	if at.IsZero() {
		at = s.now()
	}
	tz := s.resolveTimezone(ctx, sub.UserID, sub.Timezone)
	recipients := normalizeRecipients(sub.UserID, sub.Recipients)

	report := &PropagationReport{
		UserID:   sub.UserID,
		Timezone: tz,
		DayKey:   streak.DayKey(at, tz),
		Friends:  make([]UnitResult, len(recipients)),
	}
	detached := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.fanOut + 1)

	g.Go(func() error {
		report.Self = s.UpdateUserStreak(detached, sub.UserID, tz, at)
		return nil
	})

	for i, recipient := range recipients {
		if err := ctx.Err(); err != nil {
			report.Friends[i] = s.cancelledUnit(sub.UserID, recipient, err)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.Friends[i] = s.cancelledUnit(sub.UserID, recipient, err)
				return nil
			}
			report.Friends[i] = s.UpdateFriendStreak(detached, sub.UserID, recipient, tz, at)
			return nil
		})
	}
	_ = g.Wait()

	if failures := report.Failures(); len(failures) > 0 {
		logger.Warn("Streak propagation finished with failures",
			"user_id", sub.UserID, "failed_units", len(failures), "recipients", len(recipients))
	} else {
		logger.Debug("Streak propagation finished", "user_id", sub.UserID, "recipients", len(recipients))
	}
	return report, nil
}

// UpdateUserStreak bumps or resets the user's own app-wide streak in one
// atomic read-modify-write. An empty tz uses the user's stored timezone.
func (s *StreakService) UpdateUserStreak(ctx context.Context, userID, tz string, at time.Time) UnitResult {
	result := UnitResult{Unit: UnitSelf, UserID: userID}
	if err := models.ValidateUserID(userID); err != nil {
		result.fail(err)
		s.metrics.StreakUnit(UnitSelf, string(result.Outcome))
		return result
	}

	var before, after models.StreakState
	err := s.withRetry(ctx, func() error {
		return s.users.UpdateUser(ctx, userID, func(user *models.User) error {
			user.Timezone = streak.NormalizeTimezone(user.Timezone)
			zone := tz
			if zone == "" {
				zone = user.Timezone
			}
			before = user.Streak
			user.Streak = streak.Update(user.Streak, streak.DayKey(at, zone), zone)
			after = user.Streak
			return nil
		})
	})

	switch {
	case err != nil:
		result.fail(err)
		logger.Warn("Failed to update user streak", "user_id", userID, "error", err)
	case before == after:
		result.Outcome = OutcomeUnchanged
		result.Streak = after
	default:
		result.Outcome = OutcomeUpdated
		result.Streak = after
	}
	s.metrics.StreakUnit(UnitSelf, string(result.Outcome))
	return result
}

// UpdateFriendStreak bumps or resets the shared streak between userID and
// recipientID and mirrors it onto both members' edges in the same
// transaction. A missing or not-yet-accepted friendship is skipped with no
// writes. tz is the acting user's timezone and governs the day boundary.
func (s *StreakService) UpdateFriendStreak(ctx context.Context, userID, recipientID, tz string, at time.Time) UnitResult {
	result := UnitResult{Unit: UnitFriend, UserID: recipientID}
	if err := stderrors.Join(models.ValidateUserID(userID), models.ValidateUserID(recipientID)); err != nil {
		result.fail(err)
		s.metrics.StreakUnit(UnitFriend, string(result.Outcome))
		return result
	}

	pairID := models.PairID(userID, recipientID)
	result.PairID = pairID
	todayKey := streak.DayKey(at, tz)

	var (
		skipped       bool
		before, after models.StreakState
	)
	err := s.withRetry(ctx, func() error {
		return s.friendships.UpdateFriendship(ctx, pairID, func(current *models.Friendship) (*models.FriendshipChange, error) {
			skipped = false
			if current == nil || !current.IsAccepted() || !current.Involves(userID) || !current.Involves(recipientID) {
				skipped = true
				return nil, nil
			}

			next := *current
			before = current.Streak
			next.Streak = streak.Update(current.Streak, todayKey, tz)
			after = next.Streak

			return &models.FriendshipChange{
				Friendship: &next,
				Edges:      models.MirrorEdges(&next),
			}, nil
		})
	})

	switch {
	case err != nil:
		result.fail(err)
		logger.Warn("Failed to update friend streak", "user_id", userID, "pair_id", pairID, "error", err)
	case skipped:
		result.Outcome = OutcomeSkipped
		logger.Debug("Skipped friend streak, friendship not accepted", "user_id", userID, "pair_id", pairID)
	case before == after:
		result.Outcome = OutcomeUnchanged
		result.Streak = after
	default:
		result.Outcome = OutcomeUpdated
		result.Streak = after
	}
	s.metrics.StreakUnit(UnitFriend, string(result.Outcome))
	return result
}

func (s *StreakService) cancelledUnit(userID, recipientID string, err error) UnitResult {
	result := UnitResult{Unit: UnitFriend, UserID: recipientID}
	if models.ValidateUserID(recipientID) == nil {
		result.PairID = models.PairID(userID, recipientID)
	}
	result.fail(errors.Wrap(err, errors.ErrCodeStoreUnavailable, "propagation cancelled before this recipient"))
	s.metrics.StreakUnit(UnitFriend, string(result.Outcome))
	return result
}

// resolveTimezone picks the timezone governing this answer's day key.
func (s *StreakService) resolveTimezone(ctx context.Context, userID, tz string) string {
	if tz != "" {
		if !streak.ValidTimezone(tz) {
			logger.Info("Unknown timezone on submission, using default", "user_id", userID, "timezone", tz)
			return streak.DefaultTimezone
		}
		return tz
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		logger.Warn("Could not load user timezone, using default", "user_id", userID, "error", err)
		return streak.DefaultTimezone
	}
	if !streak.ValidTimezone(user.Timezone) {
		return streak.DefaultTimezone
	}
	return user.Timezone
}

// withRetry re-runs op while it fails with a transaction conflict.
func (s *StreakService) withRetry(ctx context.Context, op func() error) error {
	return retryConflicts(ctx, s.maxAttempts, s.backoff, s.metrics, op)
}

func retryConflicts(ctx context.Context, maxAttempts int, backoff time.Duration, m *metrics.Metrics, op func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op()
		if err == nil {
			m.TransactionAttempt("ok")
			return nil
		}
		if !errors.Is(err, errors.ErrCodeTransactionConflict) {
			m.TransactionAttempt("error")
			return err
		}
		m.TransactionAttempt("conflict")
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}
	return err
}

// normalizeRecipients drops empty ids, the submitter and duplicates, keeping order.
func normalizeRecipients(userID string, recipients []string) []string {
	seen := make(map[string]bool, len(recipients))
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r == "" || r == userID || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
