package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/madbus/madbus"
	"github.com/madbus/madbus/model"
)

var stopsCmd = &cobra.Command{
	Use:   "stops <query> [lat lon]",
	Short: "Lists stops matching a stop ID prefix, or near a location",
	Args:  cobra.RangeArgs(1, 3),
	RunE:  stops,
}

var (
	exact bool
	warm  bool
)

func init() {
	stopsCmd.Flags().BoolVarP(&exact, "exact", "e", false, "Only match entire stop IDs")
	stopsCmd.Flags().BoolVarP(&warm, "warm", "w", false, "Fill the stop directory before resolving")
}

func stops(cmd *cobra.Command, args []string) error {
	query := madbus.Query{Text: args[0], Exact: exact}

	if len(args) == 2 {
		return fmt.Errorf("missing lon")
	}
	if len(args) == 3 {
		lat, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid lat: %w", err)
		}
		lon, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid lon: %w", err)
		}
		query.Location = &model.Position{Lat: lat, Lon: lon}
	}

	ctx := context.Background()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if warm {
		w := a.warmer()
		w.Stagger = 0
		if err := w.Run(ctx); err != nil {
			return fmt.Errorf("warming directory: %w", err)
		}
	}

	found, err := a.service.Resolve(ctx, query)
	if err != nil {
		return err
	}

	for _, stop := range found {
		fmt.Printf("%s: %s [%s]\n", stop.ID, stop.Name, strings.Join(stop.Lines, ", "))
	}

	return nil
}
