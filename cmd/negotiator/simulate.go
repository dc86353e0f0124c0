// cmd/negotiator/simulate.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/jason-s-yu/negotiator/internal/cache"
	"github.com/jason-s-yu/negotiator/internal/database"
	"github.com/jason-s-yu/negotiator/internal/logging"
	"github.com/jason-s-yu/negotiator/internal/profile"
	"github.com/jason-s-yu/negotiator/internal/session"
	perf "github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	simProfileA string
	simProfileB string
	simRounds   int
	simSessions int
	simWorkers  int
	simSeed     uint64
	simCPUDir   string
	simJSON     bool
	simQuiet    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run local sessions between two strategy parties",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simProfileA, "profile-a", "profiles/party_a.yaml", "Preference profile of the first party")
	simulateCmd.Flags().StringVar(&simProfileB, "profile-b", "profiles/party_b.yaml", "Preference profile of the second party")
	simulateCmd.Flags().IntVar(&simRounds, "rounds", 0, "Rounds per session (0 uses the config)")
	simulateCmd.Flags().IntVar(&simSessions, "sessions", 1, "Number of sessions")
	simulateCmd.Flags().IntVar(&simWorkers, "workers", 4, "Sessions run concurrently")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 0, "Base seed; session i uses seed+2i (0 uses the config, then random)")
	simulateCmd.Flags().StringVar(&simCPUDir, "cpuprofile", "", "Write a CPU profile into this directory")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "Print every outcome as JSON")
	simulateCmd.Flags().BoolVarP(&simQuiet, "quiet", "q", false, "Silence per-party logging")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simCPUDir != "" {
		defer perf.Start(perf.CPUProfile, perf.ProfilePath(simCPUDir), perf.Quiet).Stop()
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spaceA, err := profile.LoadSpace(simProfileA)
	if err != nil {
		return err
	}
	spaceB, err := profile.LoadSpace(simProfileB)
	if err != nil {
		return err
	}
	params, err := cfg.Strategy.Params()
	if err != nil {
		return err
	}
	rounds := simRounds
	if rounds <= 0 {
		rounds = cfg.Session.Rounds
	}
	seed := simSeed
	if seed == 0 {
		seed = cfg.Session.Seed
	}
	if simSessions <= 0 {
		return fmt.Errorf("sessions must be positive, got %d", simSessions)
	}

	if err := connectStores(ctx); err != nil {
		return err
	}
	defer closeStores()

	specs := make([]session.Spec, simSessions)
	for i := range specs {
		specs[i] = session.Spec{
			IDs:    [2]string{"party-a", "party-b"},
			Spaces: [2]engine.UtilitySpace{spaceA, spaceB},
			Rounds: rounds,
			Params: params,
		}
		if simQuiet {
			specs[i].Logger = logging.Discard()
		}
		if seed != 0 {
			specs[i].Seed = seed + 2*uint64(i)
		}
	}

	log.Infof("Simulating %d session(s) of %d rounds with %d worker(s).", simSessions, rounds, simWorkers)
	outcomes, err := session.RunTournament(ctx, specs, simWorkers)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if simJSON {
		enc := json.NewEncoder(out)
		for _, o := range outcomes {
			if err := enc.Encode(o); err != nil {
				return err
			}
		}
	}
	sum := session.Summarize(outcomes)
	fmt.Fprintf(out, "sessions:   %d\n", sum.Sessions)
	fmt.Fprintf(out, "agreements: %d\n", sum.Agreements)
	fmt.Fprintf(out, "deadlines:  %d\n", sum.Deadlines)
	fmt.Fprintf(out, "violations: %d\n", sum.Violations)
	fmt.Fprintf(out, "mean rounds: %.2f\n", sum.MeanRounds)
	fmt.Fprintf(out, "mean utility: a=%.4f b=%.4f welfare=%.4f\n", sum.MeanUtilities[0], sum.MeanUtilities[1], sum.MeanWelfare)
	return nil
}

// connectStores opens the optional Redis action log and Postgres outcome store.
func connectStores(ctx context.Context) error {
	if err := cache.Connect(ctx, cfg.Redis); err != nil {
		return err
	}
	if err := database.Connect(ctx, cfg.Database.URL); err != nil {
		cache.Close()
		return err
	}
	if database.DB != nil {
		if err := database.EnsureSchema(ctx); err != nil {
			closeStores()
			return err
		}
	}
	return nil
}

func closeStores() {
	session.WaitPending()
	cache.Close()
	database.Close()
}
