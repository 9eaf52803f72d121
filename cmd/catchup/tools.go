package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mroshb/catchup/internal/config"
	"github.com/mroshb/catchup/internal/report"
	"github.com/mroshb/catchup/internal/services"
	"github.com/spf13/pflag"
)

// runPropagate records one answer from the command line and prints the
// propagation report as JSON. It exits non-zero if any unit failed.
func runPropagate(cfg *config.Config, args []string) error {
	var (
		userID     string
		timezone   string
		recipients []string
		at         string
	)
	flagSet := pflag.NewFlagSet("catchup propagate", pflag.ContinueOnError)
	flagSet.StringVar(&userID, "user", "", "answering user id (required)")
	flagSet.StringVar(&timezone, "tz", "", "IANA timezone of the answer; defaults to the stored one")
	flagSet.StringSliceVar(&recipients, "notify", nil, "comma separated friend ids to extend streaks with")
	flagSet.StringVar(&at, "at", "", "answer time in RFC 3339; defaults to now")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	sub := services.AnswerSubmission{UserID: userID, Timezone: timezone, Recipients: recipients}
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		sub.AnsweredAt = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer store.close()

	svc := services.NewStreakService(store.users, store.friendships,
		services.WithFanOut(cfg.StreakFanOut),
		services.WithRetry(cfg.StreakMaxAttempts, cfg.StreakRetryBackoff),
	)
	rep, err := svc.RecordAnswer(ctx, sub)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return rep.Err()
}

// runExport writes the user's friend streaks to an xlsx workbook.
func runExport(cfg *config.Config, args []string) error {
	var userID, out string
	flagSet := pflag.NewFlagSet("catchup export", pflag.ContinueOnError)
	flagSet.StringVar(&userID, "user", "", "user id whose friends are exported (required)")
	flagSet.StringVarP(&out, "out", "o", "friend-streaks.xlsx", "output file")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer store.close()

	owner, err := store.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	friends, err := store.friendships.ListFriends(ctx, userID)
	if err != nil {
		return err
	}

	file, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := report.WriteFriendStreaks(file, owner, friends, time.Now()); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	fmt.Printf("Wrote %d friends of %s to %s\n", len(friends), userID, out)
	return nil
}
