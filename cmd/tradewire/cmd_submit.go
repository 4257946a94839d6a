package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tradewire/internal/credential"
	"tradewire/internal/declaration"
	"tradewire/internal/submit"
)

var (
	submitOrg      string
	submitChannel  string
	submitTarget   string
	submitActor    string
	submitOverride bool
	submitHeadless bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <declaration.json> [more.json ...]",
	Short: "Submit one or more declarations",
	Long: `Submit reads declaration files and submits each through the channel
selected with --channel. Multiple files are submitted concurrently;
every file must target the same country and organization.

Precheck warnings are printed but do not block. Precheck errors block
unless --override is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		channel, err := parseChannel(submitChannel)
		if err != nil {
			return err
		}

		batch := make([]submit.BatchItem, 0, len(args))
		var country string
		for _, path := range args {
			d, err := declaration.Load(path)
			if err != nil {
				return err
			}
			if country == "" {
				country = d.Country
			} else if d.Country != country {
				return fmt.Errorf("%s targets %s, batch already targets %s", path, d.Country, country)
			}
			cred, err := app.credentialFor(orgOrDefault(d), d.Country, channel, submitTarget)
			if err != nil {
				return err
			}
			batch = append(batch, submit.BatchItem{Declaration: d, Credential: cred})
		}

		orch, err := app.orchestratorFor(cmd.Context(), country)
		if err != nil {
			return err
		}

		opts := submit.Options{Override: submitOverride, Headless: submitHeadless}
		actor := actorOrDefault(app)

		if len(batch) == 1 {
			res, err := orch.Submit(cmd.Context(), actor, batch[0].Declaration, batch[0].Credential, opts)
			printResult(batch[0].Declaration, res)
			app.saveRegistry()
			return err
		}

		results, err := orch.SubmitAll(cmd.Context(), actor, batch, opts)
		for i, res := range results {
			printResult(batch[i].Declaration, res)
		}
		app.saveRegistry()
		return err
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <record-id> <declaration.json>",
	Short: "Retry a failed submission",
	Long: `Retry loads a failed submission record and runs a fresh attempt for
its declaration. The failed record is kept untouched; the new attempt
gets its own record with an incremented retry count. Records that
succeeded, or that failed on configuration or validation, are refused.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		channel, err := parseChannel(submitChannel)
		if err != nil {
			return err
		}

		d, err := declaration.Load(args[1])
		if err != nil {
			return err
		}
		cred, err := app.credentialFor(orgOrDefault(d), d.Country, channel, submitTarget)
		if err != nil {
			return err
		}
		orch, err := app.orchestratorFor(cmd.Context(), d.Country)
		if err != nil {
			return err
		}

		res, err := orch.Retry(cmd.Context(), actorOrDefault(app), args[0], d, cred,
			submit.Options{Override: submitOverride, Headless: submitHeadless})
		printResult(d, res)
		app.saveRegistry()
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{submitCmd, retryCmd} {
		c.Flags().StringVar(&submitOrg, "org", "", "organization id (defaults to the declaration's)")
		c.Flags().StringVar(&submitChannel, "channel", "ftp", "submission channel: ftp or web")
		c.Flags().StringVar(&submitTarget, "target", "", "portal target for web credential lookup")
		c.Flags().StringVar(&submitActor, "actor", "", "who is submitting (audit trail)")
		c.Flags().BoolVar(&submitOverride, "override", false, "submit despite precheck errors")
		c.Flags().BoolVar(&submitHeadless, "headless", true, "run the browser headless (web channel)")
	}
}

func parseChannel(s string) (credential.Channel, error) {
	switch credential.Channel(s) {
	case credential.ChannelFTP:
		return credential.ChannelFTP, nil
	case credential.ChannelWeb:
		return credential.ChannelWeb, nil
	default:
		return "", fmt.Errorf("unknown channel %q (want ftp or web)", s)
	}
}

func orgOrDefault(d *declaration.Declaration) string {
	if submitOrg != "" {
		return submitOrg
	}
	return d.OrganizationID
}

func actorOrDefault(app *app) string {
	if submitActor != "" {
		return submitActor
	}
	return app.cfg.Submission.DefaultActor
}

func printResult(d *declaration.Declaration, res *submit.Result) {
	if res == nil || res.Record == nil {
		return
	}
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	rec := res.Record
	if rec.IsSuccessful {
		fmt.Printf("%s: submitted, reference %s (record %s)\n", d.ID, rec.ExternalReference, rec.ID)
		return
	}
	fmt.Printf("%s: %s, %s (record %s, retryable=%v)\n", d.ID, rec.Status, rec.ErrorMessage, rec.ID, rec.Retryable)
}
