package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/madbus/madbus/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manages the reference catalog",
}

var catalogLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Parses the catalog files (or archive) into the configured backend",
	Args:  cobra.NoArgs,
	RunE:  catalogLoad,
}

var catalogLinesCmd = &cobra.Command{
	Use:   "lines",
	Short: "Lists the lines in the catalog",
	Args:  cobra.NoArgs,
	RunE:  catalogLines,
}

var catalogStopsCmd = &cobra.Command{
	Use:   "stops [prefix]",
	Short: "Lists catalog stops, optionally only those with IDs starting with prefix",
	Args:  cobra.RangeArgs(0, 1),
	RunE:  catalogStops,
}

var catalogLimit int

func init() {
	catalogStopsCmd.Flags().IntVarP(&catalogLimit, "limit", "l", 0, "Limit the number of stops listed")
	catalogCmd.AddCommand(catalogLoadCmd)
	catalogCmd.AddCommand(catalogLinesCmd)
	catalogCmd.AddCommand(catalogStopsCmd)
}

func catalogLoad(cmd *cobra.Command, args []string) error {
	storage, closer, err := openCatalog()
	if err != nil {
		return err
	}
	defer closer.Close()

	summary, err := loadCatalog(storage)
	if err != nil {
		return err
	}

	fmt.Printf("%d lines, %d stops (%d with unknown lines)\n", summary.Lines, summary.Stops, summary.DanglingStops)

	return nil
}

// Opens the catalog for reading. Memory backed catalogs are loaded
// from file first.
func readCatalog() (catalog.Reader, io.Closer, error) {
	storage, closer, err := openCatalog()
	if err != nil {
		return nil, nil, err
	}

	if volatileCatalog() {
		if _, err := loadCatalog(storage); err != nil {
			closer.Close()
			return nil, nil, err
		}
	}

	reader, err := storage.GetReader()
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("getting catalog reader: %w", err)
	}
	return reader, closer, nil
}

func catalogLines(cmd *cobra.Command, args []string) error {
	reader, closer, err := readCatalog()
	if err != nil {
		return err
	}
	defer closer.Close()

	return printLines(os.Stdout, reader)
}

func catalogStops(cmd *cobra.Command, args []string) error {
	reader, closer, err := readCatalog()
	if err != nil {
		return err
	}
	defer closer.Close()

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	return printStops(os.Stdout, reader, prefix, catalogLimit)
}

func printLines(w io.Writer, reader catalog.Reader) error {
	lines, err := reader.Lines()
	if err != nil {
		return fmt.Errorf("listing lines: %w", err)
	}

	for _, l := range lines {
		fmt.Fprintf(w, "%s (%s): %s - %s\n", l.Label, l.Code, l.NameA, l.NameB)
	}
	return nil
}

func printStops(w io.Writer, reader catalog.Reader, prefix string, limit int) error {
	var stops []*catalog.StopRow
	var err error
	if prefix == "" {
		stops, err = reader.Stops()
		if limit > 0 && len(stops) > limit {
			stops = stops[:limit]
		}
	} else {
		stops, err = reader.StopsWithPrefix(prefix, limit)
	}
	if err != nil {
		return fmt.Errorf("listing stops: %w", err)
	}

	for _, s := range stops {
		fmt.Fprintf(w, "%s: %s [%s]\n", s.ID, s.Name, s.Lines)
	}
	return nil
}
