package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/jengzang/sites-backend-go/internal/repository"
	"github.com/jengzang/sites-backend-go/internal/service"
)

var statsTop int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print dataset statistics as JSON",
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

		stats, err := service.NewStatsService(repository.NewSiteRepository(db)).GetDatasetStats(cmd.Context(), statsTop)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsTop, "top", 10, "Number of densest cells to list")
}
