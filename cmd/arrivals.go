package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var arrivalsCmd = &cobra.Command{
	Use:   "arrivals <stop_id>",
	Short: "Prints the arrivals table for a stop",
	Args:  cobra.ExactArgs(1),
	RunE:  arrivals,
}

func arrivals(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.HandleRefresh(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(result.Title)
	fmt.Println(result.Description)
	fmt.Println(result.Body)

	return nil
}
