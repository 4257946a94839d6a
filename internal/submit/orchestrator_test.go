package submit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradewire/internal/credential"
	"tradewire/internal/declaration"
	"tradewire/internal/portal"
	"tradewire/internal/wire"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*Record)}
}

func (m *memStore) SaveRecord(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[r.ID] = &cp
	m.order = append(m.order, r.ID)
	return nil
}

func (m *memStore) UpdateRecord(ctx context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; !ok {
		return errors.New("not found")
	}
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *memStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) all() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out
}

type fakeArchive struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeArchive) ArchiveDocument(ctx context.Context, doc *wire.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, "archive/"+doc.TraderID+"/"+doc.Filename)
	return f.paths[len(f.paths)-1], nil
}

type fakeFTP struct {
	mu        sync.Mutex
	err       error
	delivered []*wire.Document
	block     chan struct{}
}

func (f *fakeFTP) Deliver(ctx context.Context, doc *wire.Document, cred *credential.FTPCredential) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.delivered = append(f.delivered, doc)
	return "inbound/" + cred.TraderID + "/" + doc.Filename, nil
}

type fakeWeb struct {
	outcome *portal.Outcome
	jobs    []*portal.Job
}

func (f *fakeWeb) Submit(ctx context.Context, job *portal.Job) *portal.Outcome {
	f.jobs = append(f.jobs, job)
	return f.outcome
}

func validDeclaration() *declaration.Declaration {
	return &declaration.Declaration{
		ID:              "dec-001",
		OrganizationID:  "org1",
		Country:         "BB",
		Vessel:          "MV Test",
		DeclarationDate: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		ArrivalDate:     time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC),
		BillOfLading:    "BOL-1",
		Consignee:       &declaration.Party{Name: "Buyer", ContactEmail: "b@example.test"},
		Items: []declaration.LineItem{
			{TariffNumber: "8471.30", Description: "Laptops", Quantity: 2, FOBValue: 100, CIFValue: 110},
		},
		SequenceNumber: 1,
	}
}

func validFTPCredential() *credential.Credential {
	return &credential.Credential{
		OrganizationID: "org1", Country: "BB", Type: credential.ChannelFTP,
		FTP: &credential.FTPCredential{TraderID: "1234", Username: "u", Password: "p"},
	}
}

func validWebCredential() *credential.Credential {
	return &credential.Credential{
		OrganizationID: "org1", Country: "BB", Type: credential.ChannelWeb,
		Web: &credential.WebCredential{Username: "u", Password: "p"},
	}
}

func TestSubmit_FTPSuccess(t *testing.T) {
	store := newMemStore()
	archive := &fakeArchive{}
	ftp := &fakeFTP{}
	o := NewOrchestrator(store, archive, ftp, nil, zap.NewNop())

	d := validDeclaration()
	res, err := o.Submit(context.Background(), "ops", d, validFTPCredential(), Options{})
	require.NoError(t, err)

	rec := res.Record
	assert.Equal(t, StatusSubmitted, rec.Status)
	assert.True(t, rec.IsSuccessful)
	assert.Equal(t, "00123402032025.001", rec.ExternalReference)
	assert.NotEmpty(t, rec.RequestData)
	assert.False(t, rec.CanRetry(), "successful records are never retryable")

	assert.Equal(t, declaration.StatusSubmitted, d.SubmissionStatus)
	assert.Equal(t, "00123402032025.001", d.SubmissionReference)
	assert.Len(t, archive.paths, 1, "document archived before delivery")
	assert.Len(t, ftp.delivered, 1)

	// Persisted copy is terminal too.
	stored, err := store.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, stored.Status)
}

func TestSubmit_IncompleteCredential(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &fakeArchive{}, &fakeFTP{}, nil, zap.NewNop())

	cred := validFTPCredential()
	cred.FTP.Password = ""

	res, err := o.Submit(context.Background(), "ops", validDeclaration(), cred, Options{})
	require.Error(t, err)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	// No record is left non-terminal.
	for _, rec := range store.all() {
		assert.NotEqual(t, StatusPending, rec.Status)
	}
	assert.False(t, res.Record.CanRetry(), "configuration failures are not retryable")
}

func TestSubmit_ChannelDisabled(t *testing.T) {
	o := NewOrchestrator(newMemStore(), &fakeArchive{}, nil, nil, zap.NewNop())
	_, err := o.Submit(context.Background(), "ops", validDeclaration(), validFTPCredential(), Options{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "disabled")
}

func TestSubmit_ValidationBlocksUnlessOverridden(t *testing.T) {
	store := newMemStore()
	ftp := &fakeFTP{}
	o := NewOrchestrator(store, &fakeArchive{}, ftp, nil, zap.NewNop())

	d := validDeclaration()
	d.Items = nil // no items from any source

	_, err := o.Submit(context.Background(), "ops", d, validFTPCredential(), Options{})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Empty(t, ftp.delivered, "blocked submission must not reach the network")

	// Override lets it through to the encoder, which still rejects the
	// empty item list; the record ends terminal and is not retryable,
	// since the same payload would fail again.
	res, err := o.Submit(context.Background(), "ops", d, validFTPCredential(), Options{Override: true})
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, StatusFailed, res.Record.Status)
	assert.False(t, res.Record.CanRetry())
	for _, rec := range store.all() {
		assert.NotEqual(t, StatusPending, rec.Status)
	}
}

func TestSubmit_WarningsDoNotBlock(t *testing.T) {
	o := NewOrchestrator(newMemStore(), &fakeArchive{}, &fakeFTP{}, nil, zap.NewNop())

	d := validDeclaration()
	d.ArrivalDate = time.Time{}
	d.BillOfLading = ""

	res, err := o.Submit(context.Background(), "ops", d, validFTPCredential(), Options{})
	require.NoError(t, err)
	assert.True(t, res.Record.IsSuccessful)
	assert.NotEmpty(t, res.Warnings)
}

func TestSubmit_FTPFailureIsTerminalAndRetryable(t *testing.T) {
	store := newMemStore()
	ftp := &fakeFTP{err: errors.New("550 upload rejected")}
	o := NewOrchestrator(store, &fakeArchive{}, ftp, nil, zap.NewNop())

	d := validDeclaration()
	res, err := o.Submit(context.Background(), "ops", d, validFTPCredential(), Options{})
	require.Error(t, err)

	rec := res.Record
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "550")
	assert.True(t, rec.CanRetry())
	assert.Equal(t, declaration.StatusFailed, d.SubmissionStatus)
}

func TestSubmit_WebChannel(t *testing.T) {
	web := &fakeWeb{outcome: &portal.Outcome{
		Success: true, Message: "all steps completed", ReferenceNumber: "C2025/00418",
	}}
	o := NewOrchestrator(newMemStore(), &fakeArchive{}, nil, web, zap.NewNop())

	d := validDeclaration()
	res, err := o.Submit(context.Background(), "ops", d, validWebCredential(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "C2025/00418", res.Record.ExternalReference)
	assert.Equal(t, credential.ChannelWeb, res.Record.Channel)

	require.Len(t, web.jobs, 1)
	assert.Equal(t, "MV Test", web.jobs[0].HeaderData["vessel"])
	assert.Len(t, web.jobs[0].Items, 1)
	assert.Equal(t, "8471300", web.jobs[0].Items[0]["tariff_number"])
	// Persisted request data must not carry the password.
	assert.NotContains(t, res.Record.RequestData, `"password":"p"`)
}

func TestRetry_AppendOnly(t *testing.T) {
	store := newMemStore()
	web := &fakeWeb{outcome: &portal.Outcome{Success: false, Message: "selector not found"}}
	o := NewOrchestrator(store, &fakeArchive{}, nil, web, zap.NewNop())

	d := validDeclaration()
	res, err := o.Submit(context.Background(), "ops", d, validWebCredential(), Options{})
	require.Error(t, err)
	failed := res.Record
	require.True(t, failed.CanRetry())

	// Portal recovered; retry succeeds on a brand-new record.
	web.outcome = &portal.Outcome{Success: true, ReferenceNumber: "C2025/00500"}
	res2, err := o.Retry(context.Background(), "ops", failed.ID, d, validWebCredential(), Options{})
	require.NoError(t, err)

	assert.NotEqual(t, failed.ID, res2.Record.ID)
	assert.Equal(t, 1, res2.Record.RetryCount)

	// The failed record is untouched.
	prev, err := store.GetRecord(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, prev.Status)
	assert.Equal(t, "automation step submission: selector not found", prev.ErrorMessage)
}

func TestRetry_RejectsNonRetryable(t *testing.T) {
	store := newMemStore()
	o := NewOrchestrator(store, &fakeArchive{}, &fakeFTP{}, nil, zap.NewNop())

	d := validDeclaration()
	res, err := o.Submit(context.Background(), "ops", d, validFTPCredential(), Options{})
	require.NoError(t, err)

	_, err = o.Retry(context.Background(), "ops", res.Record.ID, d, validFTPCredential(), Options{})
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestSubmit_ConcurrentSameDeclarationRejected(t *testing.T) {
	store := newMemStore()
	ftp := &fakeFTP{block: make(chan struct{})}
	o := NewOrchestrator(store, &fakeArchive{}, ftp, nil, zap.NewNop())

	d := validDeclaration()
	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), "ops", d, validFTPCredential(), Options{})
		done <- err
	}()

	// Wait for the first attempt to hold the lease inside Deliver.
	require.Eventually(t, func() bool {
		_, err := o.Submit(context.Background(), "ops", validDeclaration(), validFTPCredential(), Options{})
		return errors.Is(err, ErrSubmissionInFlight)
	}, time.Second, 10*time.Millisecond)

	close(ftp.block)
	require.NoError(t, <-done)

	// Lease released; a fresh submit proceeds (and trips the duplicate
	// filename on the same fake without error).
	_, err := o.Submit(context.Background(), "ops", validDeclaration(), validFTPCredential(), Options{})
	assert.NoError(t, err)
}

func TestSubmitAll_IndependentDeclarations(t *testing.T) {
	store := newMemStore()
	ftp := &fakeFTP{}
	o := NewOrchestrator(store, &fakeArchive{}, ftp, nil, zap.NewNop())

	batch := []BatchItem{}
	for _, id := range []string{"dec-a", "dec-b", "dec-c"} {
		d := validDeclaration()
		d.ID = id
		batch = append(batch, BatchItem{Declaration: d, Credential: validFTPCredential()})
	}

	results, err := o.SubmitAll(context.Background(), "ops", batch, Options{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.True(t, res.Record.IsSuccessful)
	}
	assert.Len(t, ftp.delivered, 3)
}
