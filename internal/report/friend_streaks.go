// Package report exports friend streaks to spreadsheets for support and ops.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/internal/streak"
	"github.com/xuri/excelize/v2"
)

const (
	StreakSheet  = "Friend Streaks"
	SummarySheet = "Summary"
)

// Streak health relative to the owner's today.
const (
	StatusActive = "active"  // already extended today
	StatusAtRisk = "at risk" // extended yesterday, breaks tomorrow
	StatusBroken = "broken"
	StatusNone   = "none"
)

var streakHeader = []interface{}{"Friend ID", "Name", "Username", "Friends Since", "Streak", "Last Streak Day", "Status"}

// StreakStatus classifies a stored day key against todayKey in tz.
func StreakStatus(lastDayKey, todayKey, tz string) string {
	if lastDayKey == "" {
		return StatusNone
	}
	delta, ok := streak.DayDelta(lastDayKey, todayKey, tz)
	switch {
	case !ok:
		return StatusNone
	case delta <= 0:
		return StatusActive
	case delta == 1:
		return StatusAtRisk
	}
	return StatusBroken
}

// WriteFriendStreaks writes owner's friend edges as an xlsx workbook to w.
// Day boundaries use the owner's timezone.
func WriteFriendStreaks(w io.Writer, owner *models.User, friends []models.FriendEdge, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StreakSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(StreakSheet, "A1", &streakHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(StreakSheet, "A1", "G1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	todayKey := streak.DayKey(now, owner.Timezone)
	counts := map[string]int{}
	for i, edge := range friends {
		status := StreakStatus(edge.LastStreakDate, todayKey, owner.Timezone)
		counts[status]++

		since := ""
		if !edge.Since.IsZero() {
			since = streak.DayKey(edge.Since, owner.Timezone)
		}
		row := []interface{}{
			edge.FriendID,
			edge.FriendName,
			edge.FriendUsername,
			since,
			edge.Streaks,
			edge.LastStreakDate,
			status,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(StreakSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(StreakSheet, "A", "G", 18); err != nil {
		return err
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"User", owner.ID},
		{"Timezone", owner.Timezone},
		{"Day", todayKey},
		{"Own Streak", owner.Streak.Count},
		{"Own Status", StreakStatus(owner.Streak.LastDayKey, todayKey, owner.Timezone)},
		{"Friends", len(friends)},
		{"Active", counts[StatusActive]},
		{"At Risk", counts[StatusAtRisk]},
		{"Broken", counts[StatusBroken]},
	}
	for i, row := range summary {
		row := row
		if err := f.SetSheetRow(SummarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
