package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradewire/internal/credential"
	"tradewire/internal/declaration"
	"tradewire/internal/portal"
	"tradewire/internal/wire"
)

// RecordStore persists submission records.
type RecordStore interface {
	SaveRecord(ctx context.Context, r *Record) error
	UpdateRecord(ctx context.Context, r *Record) error
	GetRecord(ctx context.Context, id string) (*Record, error)
}

// Archiver keeps a local copy of every generated wire document so the
// payload survives a failed delivery.
type Archiver interface {
	ArchiveDocument(ctx context.Context, doc *wire.Document) (string, error)
}

// FTPDeliverer is the batch upload channel.
type FTPDeliverer interface {
	Deliver(ctx context.Context, doc *wire.Document, cred *credential.FTPCredential) (string, error)
}

// WebSubmitter is the driven-browser channel.
type WebSubmitter interface {
	Submit(ctx context.Context, job *portal.Job) *portal.Outcome
}

// Options tunes one submission attempt.
type Options struct {
	// Override lets precheck errors through. Warnings never block.
	Override bool
	// Headless applies to the web channel only.
	Headless bool
}

// Result is what a submission attempt hands back to the caller.
type Result struct {
	Record   *Record
	Warnings []string
}

// keyedMutex serializes attempts per declaration. Two concurrent
// attempts for the same declaration could both succeed upstream and
// produce duplicate external references, so the second caller is
// rejected instead of queued.
type keyedMutex struct {
	mu    sync.Mutex
	inUse map[string]bool
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{inUse: make(map[string]bool)}
}

func (k *keyedMutex) tryLock(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.inUse[key] {
		return false
	}
	k.inUse[key] = true
	return true
}

func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.inUse, key)
}

// Orchestrator runs the full submission pipeline.
type Orchestrator struct {
	store    RecordStore
	archive  Archiver
	encoder  *wire.Encoder
	ftp      FTPDeliverer
	web      WebSubmitter
	logger   *zap.Logger
	leases   *keyedMutex
	maxBatch int
}

// NewOrchestrator wires the pipeline. ftp and web may each be nil when
// that channel is not configured for the country.
func NewOrchestrator(store RecordStore, archive Archiver, ftp FTPDeliverer, web WebSubmitter, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		archive:  archive,
		encoder:  wire.NewEncoder(),
		ftp:      ftp,
		web:      web,
		logger:   logger,
		leases:   newKeyedMutex(),
		maxBatch: 4,
	}
}

// Submit runs one attempt: precheck, record creation, channel dispatch
// and terminal record update. Every failure path ends with a terminal
// record; nothing is left pending once an attempt has started.
func (o *Orchestrator) Submit(ctx context.Context, actor string, d *declaration.Declaration, cred *credential.Credential, opts Options) (*Result, error) {
	if !o.leases.tryLock(d.ID) {
		return nil, ErrSubmissionInFlight
	}
	defer o.leases.unlock(d.ID)
	return o.attempt(ctx, actor, d, cred, opts, 0)
}

// Retry derives a fresh attempt from a failed record. The failed record
// is never mutated; append-only history.
func (o *Orchestrator) Retry(ctx context.Context, actor string, recordID string, d *declaration.Declaration, cred *credential.Credential, opts Options) (*Result, error) {
	prev, err := o.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", recordID, err)
	}
	if !prev.CanRetry() {
		return nil, fmt.Errorf("record %s (status %s): %w", recordID, prev.Status, ErrNotRetryable)
	}
	if prev.DeclarationID != d.ID {
		return nil, fmt.Errorf("record %s belongs to declaration %s, not %s", recordID, prev.DeclarationID, d.ID)
	}
	if !o.leases.tryLock(d.ID) {
		return nil, ErrSubmissionInFlight
	}
	defer o.leases.unlock(d.ID)
	return o.attempt(ctx, actor, d, cred, opts, prev.RetryCount+1)
}

func (o *Orchestrator) attempt(ctx context.Context, actor string, d *declaration.Declaration, cred *credential.Credential, opts Options, retryCount int) (*Result, error) {
	rec := NewRecord(d.ID, cred.Type, actor)
	rec.RetryCount = retryCount
	if err := o.store.SaveRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("create submission record: %w", err)
	}

	// Configuration problems fail fast: terminal record, no network
	// attempt, never retryable.
	if err := cred.Validate(); err != nil {
		cfgErr := &ConfigurationError{Reason: err.Error()}
		o.finish(ctx, rec, d, "", cfgErr.Error(), false)
		return &Result{Record: rec}, cfgErr
	}
	if cred.Type == credential.ChannelFTP && o.ftp == nil {
		cfgErr := &ConfigurationError{Reason: "ftp channel disabled for " + d.Country}
		o.finish(ctx, rec, d, "", cfgErr.Error(), false)
		return &Result{Record: rec}, cfgErr
	}
	if cred.Type == credential.ChannelWeb && o.web == nil {
		cfgErr := &ConfigurationError{Reason: "web channel disabled for " + d.Country}
		o.finish(ctx, rec, d, "", cfgErr.Error(), false)
		return &Result{Record: rec}, cfgErr
	}

	// Resolve the item source exactly once for the whole attempt.
	source, items := declaration.ResolveItems(d)
	check := Precheck(d, items)
	if check.Blocked(opts.Override) {
		valErr := &ValidationError{Problems: check.Errors}
		o.finish(ctx, rec, d, "", valErr.Error(), false)
		return &Result{Record: rec, Warnings: check.Warnings}, valErr
	}
	for _, w := range check.Warnings {
		o.logger.Warn("submission warning", zap.String("declaration", d.ID), zap.String("warning", w))
	}

	o.logger.Info("submitting declaration",
		zap.String("declaration", d.ID),
		zap.String("channel", string(cred.Type)),
		zap.String("item_source", string(source)),
		zap.Int("items", len(items)),
		zap.String("actor", actor))

	var ref string
	var err error
	switch cred.Type {
	case credential.ChannelFTP:
		ref, err = o.submitFTP(ctx, rec, d, items, cred.FTP)
	case credential.ChannelWeb:
		ref, err = o.submitWeb(ctx, rec, d, items, cred.Web, opts)
	}

	if err != nil {
		retryable := retryableFailure(cred.Type)
		var valErr *ValidationError
		if errors.As(err, &valErr) {
			retryable = false
		}
		o.finish(ctx, rec, d, "", err.Error(), retryable)
		return &Result{Record: rec, Warnings: check.Warnings}, err
	}

	cred.MarkUsed(rec.StartedAt)
	o.finish(ctx, rec, d, ref, "", false)
	return &Result{Record: rec, Warnings: check.Warnings}, nil
}

func (o *Orchestrator) submitFTP(ctx context.Context, rec *Record, d *declaration.Declaration, items []declaration.LineItem, cred *credential.FTPCredential) (string, error) {
	doc, err := o.encoder.Encode(d, wire.Options{
		TraderID:  cred.TraderID,
		Items:     items,
		Sequence:  sequenceOrDefault(d.SequenceNumber),
		Amendment: d.Amendment,
	})
	if err != nil {
		// Encoding only fails on bad declaration content; retrying the
		// same payload cannot succeed.
		return "", &ValidationError{Problems: []string{err.Error()}}
	}
	rec.RequestData = doc.Content

	// Archive before delivery so the payload is recoverable even when
	// the upload fails.
	if o.archive != nil {
		path, err := o.archive.ArchiveDocument(ctx, doc)
		if err != nil {
			return "", fmt.Errorf("archive document: %w", err)
		}
		o.logger.Info("document archived", zap.String("path", path))
	}

	remotePath, err := o.ftp.Deliver(ctx, doc, cred)
	if err != nil {
		return "", err
	}
	rec.ResponseData = remotePath
	return doc.Filename, nil
}

func (o *Orchestrator) submitWeb(ctx context.Context, rec *Record, d *declaration.Declaration, items []declaration.LineItem, cred *credential.WebCredential, opts Options) (string, error) {
	job := buildJob(d, items, cred, opts)

	if reqJSON, err := json.Marshal(redactedJob(job)); err == nil {
		rec.RequestData = string(reqJSON)
	}

	outcome := o.web.Submit(ctx, job)
	if respJSON, err := json.Marshal(outcome); err == nil {
		rec.ResponseData = string(respJSON)
	}
	if !outcome.Success {
		return "", &portal.AutomationError{Step: "submission", Diagnosis: outcome.Message}
	}
	return outcome.ReferenceNumber, nil
}

// finish writes the terminal state to the record and mirrors it onto
// the declaration.
func (o *Orchestrator) finish(ctx context.Context, rec *Record, d *declaration.Declaration, ref, errMsg string, retryable bool) {
	if errMsg == "" {
		rec.MarkSubmitted(ref)
		d.SubmissionStatus = declaration.StatusSubmitted
		d.SubmissionReference = ref
	} else {
		rec.MarkFailed(errMsg, retryable)
		d.SubmissionStatus = declaration.StatusFailed
	}
	if err := o.store.UpdateRecord(ctx, rec); err != nil {
		o.logger.Error("failed to persist terminal record state",
			zap.String("record", rec.ID), zap.Error(err))
	}
}

// BatchItem pairs a declaration with its credential for batch submits.
type BatchItem struct {
	Declaration *declaration.Declaration
	Credential  *credential.Credential
}

// SubmitAll runs independent declarations concurrently with a bounded
// worker count. Per-declaration leases still apply, so duplicates in
// the batch surface as ErrSubmissionInFlight instead of double
// submitting.
func (o *Orchestrator) SubmitAll(ctx context.Context, actor string, batch []BatchItem, opts Options) ([]*Result, error) {
	results := make([]*Result, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxBatch)

	for i, item := range batch {
		g.Go(func() error {
			res, err := o.Submit(gctx, actor, item.Declaration, item.Credential, opts)
			results[i] = res
			return err
		})
	}
	err := g.Wait()
	return results, err
}

func buildJob(d *declaration.Declaration, items []declaration.LineItem, cred *credential.WebCredential, opts Options) *portal.Job {
	header := map[string]string{
		"vessel":            d.Vessel,
		"manifest_number":   d.ManifestNumber,
		"bill_of_lading":    d.BillOfLading,
		"arrival_date":      wire.Date(d.ArrivalDate),
		"port_of_loading":   d.PortOfLoading,
		"port_of_discharge": d.PortOfDischarge,
		"cpc":               d.CPC,
		"currency_code":     d.CurrencyCode,
		"country_of_origin": d.CountryOfOrigin,
		"gross_weight":      wire.Decimal(d.GrossWeight, 2),
		"package_count":     strconv.Itoa(d.PackageCount),
	}
	if d.Consignee != nil {
		header["consignee"] = d.Consignee.Name
	}
	if d.Shipper != nil {
		header["shipper"] = d.Shipper.Name
	}

	jobItems := make([]map[string]string, 0, len(items))
	for _, item := range items {
		jobItems = append(jobItems, map[string]string{
			"tariff_number":     wire.TariffNumber(item.TariffNumber),
			"description":       item.Description,
			"quantity":          wire.Decimal(item.Quantity, 2),
			"country_of_origin": item.CountryOfOrigin,
			"fob_value":         wire.Decimal(item.FOBValue, 2),
			"cif_value":         wire.Decimal(item.CIFValue, 2),
		})
	}

	return &portal.Job{
		Action: portal.JobActionSubmit,
		Credentials: portal.JobCredentials{
			Username:       cred.Username,
			Password:       cred.Password,
			FieldSelectors: cred.FieldSelectors,
		},
		HeaderData: header,
		Items:      jobItems,
		Headless:   opts.Headless,
	}
}

// redactedJob strips the password before request data is persisted.
func redactedJob(job *portal.Job) *portal.Job {
	clone := *job
	clone.Credentials.Password = "[redacted]"
	return &clone
}

func sequenceOrDefault(seq int) int {
	if seq <= 0 {
		return 1
	}
	return seq
}

// retryableFailure states the channel retry policy: web and transport
// failures may be retried, configuration and validation failures (which
// never reach here) may not.
func retryableFailure(channel credential.Channel) bool {
	switch channel {
	case credential.ChannelWeb, credential.ChannelFTP:
		return true
	default:
		return false
	}
}
