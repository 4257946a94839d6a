package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tradewire/internal/credential"
	"tradewire/internal/ftp"
	"tradewire/internal/portal"
)

var (
	credOrg     string
	credCountry string
	credChannel string
	credTarget  string
)

var testCredentialCmd = &cobra.Command{
	Use:   "test-credential",
	Short: "Verify a stored credential against the live endpoint",
	Long: `test-credential connects to the configured endpoint and authenticates
with the stored credential. FTP tests log in and read the working
directory; portal tests log in through a driven browser. No declaration
data is sent either way.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		channel, err := parseChannel(credChannel)
		if err != nil {
			return err
		}
		cred, err := app.credentialFor(credOrg, credCountry, channel, credTarget)
		if err != nil {
			return err
		}
		if err := cred.Validate(); err != nil {
			return err
		}
		cc, ok := app.cfg.Country(credCountry)
		if !ok {
			return fmt.Errorf("no channel configured for country %s", credCountry)
		}

		switch channel {
		case credential.ChannelFTP:
			if cc.FTP == nil {
				return fmt.Errorf("country %s has no ftp endpoint", credCountry)
			}
			client := ftp.NewClient(ftp.Endpoint{
				Host:     cc.FTP.Host,
				Port:     cc.FTP.Port,
				Passive:  cc.FTP.Passive,
				BasePath: cc.FTP.BasePath,
				Timeout:  cc.FTP.GetTimeout(),
			}, logger)
			res := client.Test(cmd.Context(), cred.FTP)
			if !res.Success {
				return fmt.Errorf("%s: %s", res.Message, res.Details)
			}
			fmt.Printf("ok: %s\n", res.Message)

		case credential.ChannelWeb:
			if cc.Portal == nil {
				return fmt.Errorf("country %s has no portal endpoint", credCountry)
			}
			assistant, err := app.assistant(cmd.Context())
			if err != nil {
				return err
			}
			web := portal.NewChannel(portal.ChannelConfig{
				Enabled:    true,
				BaseURL:    cc.Portal.BaseURL,
				LoginURL:   cc.Portal.LoginURL,
				Headless:   true,
				MaxRetries: cc.Portal.MaxRetries,
			}, assistant, logger)
			outcome := web.Submit(cmd.Context(), &portal.Job{
				Action: portal.JobActionLoginTest,
				Credentials: portal.JobCredentials{
					Username:       cred.Web.Username,
					Password:       cred.Web.Password,
					FieldSelectors: cred.Web.FieldSelectors,
				},
				Headless: true,
			})
			if !outcome.Success {
				return fmt.Errorf("login failed: %s", outcome.Message)
			}
			fmt.Printf("ok: %s\n", outcome.Message)
		}

		cred.MarkTested(time.Now().UTC())
		app.saveRegistry()
		return nil
	},
}

func init() {
	testCredentialCmd.Flags().StringVar(&credOrg, "org", "", "organization id")
	testCredentialCmd.Flags().StringVar(&credCountry, "country", "", "destination country code")
	testCredentialCmd.Flags().StringVar(&credChannel, "channel", "ftp", "channel: ftp or web")
	testCredentialCmd.Flags().StringVar(&credTarget, "target", "", "portal target for web credential lookup")
	_ = testCredentialCmd.MarkFlagRequired("org")
	_ = testCredentialCmd.MarkFlagRequired("country")
}
