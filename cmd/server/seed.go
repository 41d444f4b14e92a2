package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jengzang/sites-backend-go/internal/repository"
	"github.com/jengzang/sites-backend-go/internal/service"
)

var (
	seedCount     int
	seedValue     int64
	seedImageBase string
	seedBatch     int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with generated dive sites",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		svc := service.NewSeedService(repository.NewSiteRepository(db), slog.Default())
		return svc.Seed(cmd.Context(), seedCount, seedValue, seedImageBase, seedBatch)
	},
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 12000, "Number of sites to generate")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 1, "Random seed; the same seed yields the same sites")
	seedCmd.Flags().StringVar(&seedImageBase, "image-base", "", "Base URL for hero images; empty means no images")
	seedCmd.Flags().IntVar(&seedBatch, "batch", 1000, "Rows per insert transaction")
}
