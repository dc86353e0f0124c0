// cmd/negotiator/inspect.go
package main

import (
	"fmt"
	"io"

	engine "github.com/jason-s-yu/negotiator/engine"
	"github.com/jason-s-yu/negotiator/internal/profile"
	"github.com/spf13/cobra"
)

var inspectProfile string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print a preference profile with its extreme bids and acceptance threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		space, err := profile.LoadSpace(inspectProfile)
		if err != nil {
			return err
		}
		return describeSpace(cmd.OutOrStdout(), space)
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectProfile, "profile", "p", "profiles/party_a.yaml", "Preference profile")
}

func describeSpace(w io.Writer, space *engine.AdditiveUtilitySpace) error {
	d := space.Domain()
	fmt.Fprintf(w, "domain %s: %d issues, %d bids\n", d.Name, d.NumIssues(), d.Size())
	for _, iss := range d.Issues() {
		fmt.Fprintf(w, "  %d %s (weight %.4f)\n", iss.Number, iss.Name, space.Weight(iss.Number))
		for _, v := range iss.Values {
			e, err := space.Evaluation(iss.Number, v)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "      %-20s %.4f\n", v, e)
		}
	}

	maxBid, err := space.MaxUtilityBid()
	if err != nil {
		return err
	}
	minBid, err := space.MinUtilityBid()
	if err != nil {
		return err
	}
	hi, err := space.Utility(maxBid)
	if err != nil {
		return err
	}
	lo, err := space.Utility(minBid)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "max %s = %.4f\n", maxBid, hi)
	fmt.Fprintf(w, "min %s = %.4f\n", minBid, lo)
	fmt.Fprintf(w, "threshold %.4f\n", (hi+lo)/2)
	return nil
}
