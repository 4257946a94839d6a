package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradewire/internal/credential"
	"tradewire/internal/submit"
	"tradewire/internal/wire"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "tradewire.db"), filepath.Join(dir, "archive"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := submit.NewRecord("dec-001", credential.ChannelFTP, "ops@example.test")
	require.NoError(t, s.SaveRecord(ctx, rec))

	rec.MarkSubmitted("00123402032025.001")
	require.NoError(t, s.UpdateRecord(ctx, rec))

	got, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, submit.StatusSubmitted, got.Status)
	assert.True(t, got.IsSuccessful)
	assert.Equal(t, "00123402032025.001", got.ExternalReference)
	assert.Equal(t, "ops@example.test", got.Actor)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestListRecords_AppendOnlyHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := submit.NewRecord("dec-001", credential.ChannelWeb, "ops")
	require.NoError(t, s.SaveRecord(ctx, first))
	first.MarkFailed("selector not found", true)
	require.NoError(t, s.UpdateRecord(ctx, first))

	second := submit.NewRecord("dec-001", credential.ChannelWeb, "ops")
	second.RetryCount = 1
	second.StartedAt = first.StartedAt.Add(time.Minute)
	require.NoError(t, s.SaveRecord(ctx, second))

	other := submit.NewRecord("dec-002", credential.ChannelFTP, "ops")
	require.NoError(t, s.SaveRecord(ctx, other))

	records, err := s.ListRecords(ctx, "dec-001")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID, "newest first")
	assert.Equal(t, 1, records[0].RetryCount)

	all, err := s.ListRecords(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateRecord_NotFound(t *testing.T) {
	s := openTestStore(t)
	rec := submit.NewRecord("dec-404", credential.ChannelFTP, "")
	err := s.UpdateRecord(context.Background(), rec)
	assert.Error(t, err)
}

func TestArchiveDocument(t *testing.T) {
	s := openTestStore(t)
	doc := &wire.Document{
		Content:   "01|A\r\n99|2\r\n",
		Filename:  "00004202032025.001",
		TraderID:  "42",
		LineCount: 2,
		ItemCount: 1,
	}

	path, err := s.ArchiveDocument(context.Background(), doc)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, string(data))
	assert.Contains(t, path, filepath.Join("42", doc.Filename))

	// Archiving the same filename twice overwrites rather than erroring.
	_, err = s.ArchiveDocument(context.Background(), doc)
	assert.NoError(t, err)
}
