// cmd/negotiator/history.go
package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jason-s-yu/negotiator/internal/cache"
	"github.com/jason-s-yu/negotiator/internal/database"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show the stored outcome and queued actions of a simulated session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}
	ctx := cmd.Context()
	if err := connectStores(ctx); err != nil {
		return err
	}
	defer closeStores()
	if database.DB == nil && cache.Rdb == nil {
		return errors.New("no outcome store or action log configured (set DATABASE_URL or REDIS_ADDR)")
	}

	out := cmd.OutOrStdout()
	if database.DB != nil {
		o, err := database.GetSessionOutcome(ctx, id)
		switch {
		case errors.Is(err, database.ErrOutcomeNotFound):
			fmt.Fprintf(out, "session %s: no stored outcome\n", id)
		case err != nil:
			return err
		default:
			printOutcome(out, o)
		}
	}
	if cache.Rdb != nil {
		recs, err := cache.SessionActions(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d queued action(s)\n", len(recs))
		for _, r := range recs {
			fmt.Fprintf(out, "  #%-3d round %-4d t=%.3f %-18s %s\n", r.ActionIndex, r.Round, r.Time, r.ActionType, r.Actor)
		}
	}
	return nil
}

func printOutcome(w io.Writer, o database.SessionOutcome) {
	fmt.Fprintf(w, "session %s (%s): %s vs %s\n", o.SessionID, o.Domain, o.Parties[0], o.Parties[1])
	if o.Agreement {
		fmt.Fprintf(w, "agreement on %s, utilities %.4f / %.4f\n", o.AgreedBid, o.Utilities[0], o.Utilities[1])
	} else {
		fmt.Fprintln(w, "no agreement")
	}
	fmt.Fprintf(w, "rounds %d, ended by %s, %s\n", o.Rounds, o.EndedBy, o.EndedAt.Sub(o.StartedAt))
	if o.Violation != "" {
		fmt.Fprintf(w, "violation: %s\n", o.Violation)
	}
}
