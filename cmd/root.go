package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelf-meta-srv",
		Short: "Metadata and barcode resolution for a personal media inventory",
		Long: `shelf-meta-srv enriches inventory items with catalog metadata.

It matches a free-text name or a barcode against the catalog of the item's
content type (books, movies, games, board games, music) and names unknown
barcodes through a chain of web search providers.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMetadataCmd())
	cmd.AddCommand(newBarcodeCmd())

	return cmd
}
