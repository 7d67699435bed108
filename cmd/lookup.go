package cmd

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"shelf-meta-srv/internal/models"
)

func newMetadataCmd() *cobra.Command {
	var (
		typ  string
		code string
	)

	cmd := &cobra.Command{
		Use:   "metadata [name]",
		Short: "Look a name up in the catalog of one content type",
		Long: `Prints the best catalog match for a name as JSON without storing it.
Prints null when no catalog candidate matched.`,
		Example: `  shelf-meta-srv metadata "Dune (1965)" --type books
  shelf-meta-srv metadata --type music --barcode 0602547288233`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := models.ParseType(typ)
			if err != nil {
				return err
			}
			name := strings.Join(args, " ")
			if strings.TrimSpace(name) == "" && code == "" {
				return errors.New("a name or --barcode is required")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return printJSON(cmd.OutOrStdout(), a.metadata.Preview(cmd.Context(), name, t, code))
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", "", "Content type: books, movies, games, boardgames, music")
	cmd.Flags().StringVarP(&code, "barcode", "b", "", "Barcode tried before the name where the catalog supports it")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newBarcodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "barcode <code>",
		Short:   "Name the product behind a barcode",
		Long:    `Resolves a barcode through the cache then the search provider chain and prints the result as JSON.`,
		Example: `  shelf-meta-srv barcode 0711719541028`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.barcodes.ResolveName(cmd.Context(), args[0])
			if res == nil {
				return err
			}
			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
			return err
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
