package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tradewire/internal/credential"
	"tradewire/internal/declaration"
	"tradewire/internal/submit"
	"tradewire/internal/wire"
)

var (
	previewOrg      string
	previewTraderID string
)

var previewCmd = &cobra.Command{
	Use:   "preview <declaration.json>",
	Short: "Render the wire document without submitting",
	Long: `Preview runs precheck and the wire encoder for a declaration and
prints the exact file content and filename an FTP submission would
deliver. Nothing is uploaded and no record is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		d, err := declaration.Load(args[0])
		if err != nil {
			return err
		}

		traderID := previewTraderID
		if traderID == "" {
			org := previewOrg
			if org == "" {
				org = d.OrganizationID
			}
			cred := app.registry.Lookup(org, d.Country, credential.ChannelFTP, "")
			if cred == nil || cred.FTP == nil {
				return fmt.Errorf("no trader id: pass --trader-id or configure an ftp credential")
			}
			traderID = cred.FTP.TraderID
		}

		source, items := declaration.ResolveItems(d)
		check := submit.Precheck(d, items)
		for _, e := range check.Errors {
			fmt.Printf("error: %s\n", e)
		}
		for _, w := range check.Warnings {
			fmt.Printf("warning: %s\n", w)
		}

		seq := d.SequenceNumber
		if seq <= 0 {
			seq = 1
		}
		doc, err := wire.NewEncoder().Encode(d, wire.Options{
			TraderID:  traderID,
			Items:     items,
			Sequence:  seq,
			Amendment: d.Amendment,
		})
		if err != nil {
			return err
		}

		fmt.Printf("filename:    %s\n", doc.Filename)
		fmt.Printf("item source: %s (%d items, %d lines)\n\n", source, doc.ItemCount, doc.LineCount)
		fmt.Print(doc.Content)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewOrg, "org", "", "organization id (defaults to the declaration's)")
	previewCmd.Flags().StringVar(&previewTraderID, "trader-id", "", "trader id for the filename (defaults to the ftp credential's)")
}
