package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/geo"
	"example.com/activities/internal/geocoding"
)

func newRankCmd(c *cli) *cobra.Command {
	var reference string
	cmd := &cobra.Command{
		Use:   "rank <city>...",
		Short: "Rank cities by distance from a reference city",
		Long:  `Resolves every city through the configured geocoder and prints them in the order the activity listing would use.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reference == "" {
				reference = c.cfg.ReferenceCity
			}
			geocoder, closeGeocoder, err := geocoding.FromConfig(c.cfg, c.log)
			if err != nil {
				return err
			}
			defer closeGeocoder()

			ranked, err := rankCities(cmd, geo.NewRanker(geocoder, c.log), reference, args)
			if err != nil {
				return err
			}
			return printRanking(cmd.OutOrStdout(), reference, ranked)
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "Reference city (defaults to REFERENCE_CITY)")
	return cmd
}

func rankCities(cmd *cobra.Command, ranker domain.Ranker, reference string, cities []string) ([]domain.RankedActivity, error) {
	activities := make([]domain.Activity, 0, len(cities))
	for i, city := range cities {
		activities = append(activities, domain.Activity{ID: fmt.Sprintf("%d", i+1), Name: city, City: city})
	}
	return ranker.Rank(cmd.Context(), activities, reference)
}

func printRanking(w io.Writer, reference string, ranked []domain.RankedActivity) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tCITY\tDISTANCE FROM %s (KM)\n", reference)
	for i, item := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\n", i+1, item.City, item.DistanceKm)
	}
	return tw.Flush()
}
