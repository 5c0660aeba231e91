package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

// archStore is a fake TickStore for retention runs.
type archStore struct {
	fakeStore
	old     []domain.IndicatorRecord
	deleted bool
}

func (s *archStore) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.IndicatorRecord, error) {
	return s.old, nil
}

func (s *archStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.deleted = true
	return int64(len(s.old)), nil
}

// fakeBlob captures uploads and can be made to fail.
type fakeBlob struct {
	key         string
	contentType string
	body        []byte
	err         error
}

func (b *fakeBlob) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if b.err != nil {
		return b.err
	}
	b.key = path
	b.contentType = contentType
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.body = body
	return nil
}

func TestRunOnce_ArchivesThenPurges(t *testing.T) {
	old := []domain.IndicatorRecord{
		{Symbol: "BTCUSDT", Timestamp: time.Now().Add(-40 * 24 * time.Hour), NetVolumeUSD: 5},
		{Symbol: "BTCUSDT", Timestamp: time.Now().Add(-35 * 24 * time.Hour), NetVolumeUSD: -3},
	}
	store := &archStore{old: old}
	blob := &fakeBlob{}
	job := NewRetention(store, blob, 30, 24*time.Hour, slog.Default())

	require.NoError(t, job.RunOnce(context.Background()))

	require.True(t, store.deleted)
	require.Contains(t, blob.key, "archive/ticks/")
	require.Equal(t, "application/x-ndjson", blob.contentType)

	// One JSON document per line.
	var lines int
	sc := bufio.NewScanner(bytes.NewReader(blob.body))
	for sc.Scan() {
		var rec domain.IndicatorRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		lines++
	}
	require.Equal(t, len(old), lines)
}

func TestRunOnce_NothingToArchive(t *testing.T) {
	store := &archStore{}
	blob := &fakeBlob{}
	job := NewRetention(store, blob, 30, 24*time.Hour, slog.Default())

	require.NoError(t, job.RunOnce(context.Background()))
	require.False(t, store.deleted)
	require.Empty(t, blob.key)
}

func TestRunOnce_UploadFailureSkipsPurge(t *testing.T) {
	store := &archStore{old: []domain.IndicatorRecord{
		{Symbol: "BTCUSDT", Timestamp: time.Now().Add(-40 * 24 * time.Hour)},
	}}
	blob := &fakeBlob{err: errors.New("bucket unreachable")}
	job := NewRetention(store, blob, 30, 24*time.Hour, slog.Default())

	require.Error(t, job.RunOnce(context.Background()))
	require.False(t, store.deleted)
}
