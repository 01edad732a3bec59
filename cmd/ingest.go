package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	ingestSource   string
	ingestFile     string
	ingestCategory string
	ingestLocation string
	ingestPages    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Clean, deduplicate and store raw listings from a producer",
	Long:  "Runs a listing producer and upserts every listing it returns: rejects are skipped, duplicates merge into the existing record, everything else is inserted unenriched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		producer, err := producerFor(ingestSource, ingestFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "ingest")
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Ingestor.Run(ctx, producer, ingestCategory, ingestLocation, ingestPages)
		if run != nil {
			writeRunSummary(os.Stdout, run)
		}
		return err
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "file", "listing producer")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "input file for the file producer (.json, .yaml, .csv, .xlsx)")
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "only listings whose category contains this text")
	ingestCmd.Flags().StringVar(&ingestLocation, "location", "", `only listings in this location ("City, ST", "City" or "ST")`)
	ingestCmd.Flags().IntVar(&ingestPages, "pages", 5, "result pages to request from paginated producers")
	rootCmd.AddCommand(ingestCmd)
}
