package commands

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/marshallshelly/storefront/cmd/storefront/output"
	"github.com/marshallshelly/storefront/pkg/builder"
	"github.com/marshallshelly/storefront/pkg/seed"
	"github.com/marshallshelly/storefront/pkg/store"
	"github.com/spf13/cobra"
)

var fixtureFile string

// seedCmd loads a YAML fixture into the database.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load fixture data",
	Long: `Insert the records of a YAML fixture in a single transaction.
Records reference each other by key; nothing is written if any record fails.

Examples:
  storefront seed --file fixtures.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fixture, err := seed.Load(fixtureFile)
		if err != nil {
			return err
		}

		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		s := store.New(builder.New(db), store.WithLogger(logger))
		result, err := seed.Apply(ctx, s, fixture)
		if err != nil {
			output.Error("Seeding failed, nothing was written")
			return err
		}

		if jsonOutput {
			return writeJSON(os.Stdout, result)
		}

		output.Section("Seeded " + fixtureFile)
		for _, table := range slices.Sorted(maps.Keys(result)) {
			fmt.Printf("  %-20s %d\n", table, result[table])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&fixtureFile, "file", "f", "", "YAML fixture file (required)")
	_ = seedCmd.MarkFlagRequired("file")
}
