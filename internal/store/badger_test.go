package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/mindecho/backend/internal/model/chat"
)

func testSnapshot() Snapshot {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return Snapshot{
		Sessions: []model.Session{
			{
				ID:                 "sess-1",
				Title:              "工作壓力",
				TherapyMode:        model.ModeCBT,
				LastMessagePreview: "讓我們分析一下這些想法",
				LastUpdated:        created.Add(time.Minute),
				MessageCount:       2,
				Tags:               []string{"CBT", "工作"},
				CreatedAt:          created,
			},
			{
				ID:          "sess-2",
				Title:       "新會話",
				TherapyMode: model.ModeChat,
				Tags:        []string{"聊天"},
				CreatedAt:   created,
				LastUpdated: created,
			},
		},
		Messages: map[string][]model.Message{
			"sess-1": {
				{ID: "m1", SessionID: "sess-1", Content: "我最近工作壓力很大", Author: model.AuthorUser, Mode: model.ModeCBT, CreatedAt: created},
				{ID: "m2", SessionID: "sess-1", Content: "讓我們分析一下這些想法", Author: model.AuthorAssistant, Mode: model.ModeCBT, CreatedAt: created.Add(time.Minute)},
			},
			"sess-2": {},
		},
	}
}

func TestBadgerLoadEmpty(t *testing.T) {
	s, err := OpenBadger(InMemoryBadgerConfig())
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Sessions)
	assert.Empty(t, snap.Messages)
	assert.NotNil(t, snap.Messages)
}

func TestBadgerRoundTrip(t *testing.T) {
	s, err := OpenBadger(InMemoryBadgerConfig())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	want := testSnapshot()
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)

	// The serialization round-trip law: bytes in equal bytes out.
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(wantJSON), string(gotJSON))
}

func TestBadgerSaveReplacesAtomically(t *testing.T) {
	s, err := OpenBadger(InMemoryBadgerConfig())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testSnapshot()))

	// Overwrite with a smaller snapshot; nothing from the first save may
	// survive.
	second := Snapshot{
		Sessions: []model.Session{{ID: "only", Title: "新會話", TherapyMode: model.ModeMBT}},
		Messages: map[string][]model.Message{"only": {}},
	}
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Sessions, 1)
	assert.Equal(t, "only", got.Sessions[0].ID)
	assert.NotContains(t, got.Messages, "sess-1")
}

func TestBadgerPersistentPath(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenBadger(DefaultBadgerConfig(dir))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testSnapshot()))
	require.NoError(t, s.Close())

	// Reopen and verify the data survived.
	s, err = OpenBadger(DefaultBadgerConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Sessions, 2)
	assert.Len(t, got.Messages["sess-1"], 2)
}

func TestBadgerRequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	require.Error(t, err)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Sessions)

	want := testSnapshot()
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Sessions, got.Sessions)
	assert.Equal(t, want.Messages, got.Messages)

	// The stored copy must not alias the caller's snapshot.
	want.Sessions[0].Title = "mutated"
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "工作壓力", got.Sessions[0].Title)
}

func TestMemoryStoreFailSave(t *testing.T) {
	s := NewMemoryStore()
	s.FailSave = ErrPersistence

	err := s.Save(context.Background(), testSnapshot())
	require.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, s.Saves())
}
