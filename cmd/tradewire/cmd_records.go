package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	recordsDeclaration string
	recordsJSON        bool
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List submission history",
	Long: `Records lists submission attempts, newest first. The history is
append-only: every attempt, including retries, appears as its own row.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		recs, err := app.store.ListRecords(cmd.Context(), recordsDeclaration)
		if err != nil {
			return err
		}

		if recordsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}

		if len(recs) == 0 {
			fmt.Println("no records")
			return nil
		}
		for _, r := range recs {
			ref := r.ExternalReference
			if ref == "" {
				ref = "-"
			}
			fmt.Printf("%s  %-9s  %-3s  retry=%d  ref=%-20s  %s\n",
				r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Channel, r.RetryCount, ref, r.DeclarationID)
			if r.ErrorMessage != "" {
				fmt.Printf("    %s\n", r.ErrorMessage)
			}
		}
		return nil
	},
}

func init() {
	recordsCmd.Flags().StringVar(&recordsDeclaration, "declaration", "", "filter by declaration id")
	recordsCmd.Flags().BoolVar(&recordsJSON, "json", false, "emit records as JSON")
}
