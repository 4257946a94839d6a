package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tradewire/internal/assist"
	"tradewire/internal/config"
	"tradewire/internal/credential"
	"tradewire/internal/ftp"
	"tradewire/internal/portal"
	"tradewire/internal/store"
	"tradewire/internal/submit"
)

// app bundles the runtime pieces every command needs: config, record
// store and credential registry.
type app struct {
	cfg      *config.Config
	store    *store.Store
	registry *credential.Registry
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.DatabasePath, cfg.Storage.ArchiveDir, logger)
	if err != nil {
		return nil, err
	}

	registry, err := credential.LoadRegistry(cfg.Storage.CredentialsPath)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: st, registry: registry}, nil
}

func (a *app) Close() {
	a.store.Close()
}

// orchestratorFor wires the channels configured for one destination
// country. A channel with no endpoint stays nil and the orchestrator
// rejects attempts against it as a configuration error.
func (a *app) orchestratorFor(ctx context.Context, country string) (*submit.Orchestrator, error) {
	cc, ok := a.cfg.Country(country)
	if !ok {
		return nil, fmt.Errorf("no channel configured for country %s", country)
	}

	var deliverer submit.FTPDeliverer
	if cc.FTP != nil {
		deliverer = ftp.NewClient(ftp.Endpoint{
			Host:     cc.FTP.Host,
			Port:     cc.FTP.Port,
			Passive:  cc.FTP.Passive,
			BasePath: cc.FTP.BasePath,
			Timeout:  cc.FTP.GetTimeout(),
		}, logger)
	}

	var web submit.WebSubmitter
	if cc.Portal != nil {
		assistant, err := a.assistant(ctx)
		if err != nil {
			return nil, err
		}
		web = portal.NewChannel(portal.ChannelConfig{
			Enabled:       true,
			BaseURL:       cc.Portal.BaseURL,
			LoginURL:      cc.Portal.LoginURL,
			SuccessMarker: cc.Portal.SuccessMarker,
			Headless:      cc.Portal.Headless,
			ScreenshotDir: cc.Portal.ScreenshotDir,
			MaxRetries:    cc.Portal.MaxRetries,
		}, assistant, logger)
	}

	return submit.NewOrchestrator(a.store, a.store, deliverer, web, logger), nil
}

// assistant builds the recovery assistant, or nil when disabled. The
// portal works without one; it just retries blindly.
func (a *app) assistant(ctx context.Context) (portal.Assistant, error) {
	if !a.cfg.Assist.Enabled || a.cfg.Assist.APIKey == "" {
		return nil, nil
	}
	client, err := assist.NewClient(ctx, a.cfg.Assist.APIKey, a.cfg.Assist.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("assistant init: %w", err)
	}
	return client, nil
}

// saveRegistry writes credential timestamp updates back to disk. Best
// effort: a failed save is logged, never fatal.
func (a *app) saveRegistry() {
	if err := a.registry.Save(a.cfg.Storage.CredentialsPath); err != nil {
		logger.Warn("failed to persist credential registry", zap.Error(err))
	}
}

// credentialFor resolves the credential for a submission.
func (a *app) credentialFor(orgID, country string, channel credential.Channel, target string) (*credential.Credential, error) {
	cred := a.registry.Lookup(orgID, country, channel, target)
	if cred == nil {
		return nil, fmt.Errorf("no %s credential for organization %s in %s", channel, orgID, country)
	}
	return cred, nil
}
