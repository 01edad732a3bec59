package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/blok-blok-studio/leadscraper/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record totals, enrichment coverage and top states and categories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		formatStats(os.Stdout, stats)
		return nil
	},
}

// formatStats writes the totals table followed by the top-N tables.
func formatStats(w io.Writer, s *model.Stats) {
	enrichedPct := 0.0
	if s.TotalRecords > 0 {
		enrichedPct = float64(s.EnrichedRecords) / float64(s.TotalRecords) * 100
	}
	_, _ = fmt.Fprintln(w, renderTable(
		[]string{"Metric", "Value"},
		[][]string{
			{"Total records", strconv.Itoa(s.TotalRecords)},
			{"Enriched", fmt.Sprintf("%d (%.1f%%)", s.EnrichedRecords, enrichedPct)},
			{"Unenriched", strconv.Itoa(s.UnenrichedRecords)},
			{"Avg quality score", fmt.Sprintf("%.1f", s.AvgQualityScore)},
		},
		[]columnAlignment{alignLeft, alignRight},
	))

	for _, section := range []struct {
		title string
		rows  []model.CountByKey
	}{
		{"State", s.TopStates},
		{"Category", s.TopCategories},
	} {
		if len(section.rows) == 0 {
			continue
		}
		rows := make([][]string, len(section.rows))
		for i, c := range section.rows {
			rows[i] = []string{c.Key, strconv.Itoa(c.Count)}
		}
		_, _ = fmt.Fprintln(w, renderTable([]string{section.title, "Records"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
