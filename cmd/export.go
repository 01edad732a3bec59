package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blok-blok-studio/leadscraper/internal/export"
	"github.com/blok-blok-studio/leadscraper/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records to CSV, JSON or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		formatName, _ := cmd.Flags().GetString("format")
		if formatName == "" {
			formatName = cfg.Export.Format
		}
		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.Export.Dir
		}
		state, _ := cmd.Flags().GetString("state")
		category, _ := cmd.Flags().GetString("category")
		minQuality, _ := cmd.Flags().GetInt("min-quality")
		enrichedOnly, _ := cmd.Flags().GetBool("enriched-only")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := export.Run(ctx, st, export.Options{
			Format: format,
			Dir:    dir,
			Filter: store.RecordFilter{
				State:        state,
				Category:     category,
				MinQuality:   minQuality,
				EnrichedOnly: enrichedOnly,
				Limit:        limit,
			},
		})
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d records to %s\n", res.Records, res.Path)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "", "csv, json or xlsx (default from export.format)")
	exportCmd.Flags().String("dir", "", "output directory (default from export.dir)")
	exportCmd.Flags().String("state", "", "two-letter state filter")
	exportCmd.Flags().String("category", "", "category substring filter")
	exportCmd.Flags().Int("min-quality", 0, "minimum quality score")
	exportCmd.Flags().Bool("enriched-only", false, "only enriched records")
	exportCmd.Flags().Int("limit", 10000, "max records to export")
	rootCmd.AddCommand(exportCmd)
}
