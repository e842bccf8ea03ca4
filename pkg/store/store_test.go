package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type factory func(t *testing.T, opts ...Option) Store

func backends() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T, opts ...Option) Store {
			return NewMemoryStore(opts...)
		},
		"sqlite": func(t *testing.T, opts ...Option) Store {
			s, err := NewSQLiteStore(context.Background(), SQLiteConfig{
				Path:    filepath.Join(t.TempDir(), "test.db"),
				WALMode: true,
			}, opts...)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

// stepClock returns a clock that advances by one millisecond per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

func TestStoreConformance(t *testing.T) {
	for name, newStore := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("CreateAndGetThread", func(t *testing.T) {
				s := newStore(t, WithClock(stepClock()))
				ctx := context.Background()

				created, err := s.CreateThread(ctx, "Planning")
				require.NoError(t, err)
				assert.NotEmpty(t, created.ID)

				got, err := s.GetThread(ctx, created.ID)
				require.NoError(t, err)
				assert.Equal(t, created.ID, got.ID)
				assert.Equal(t, "Planning", got.Title)
				assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
			})

			t.Run("GetMissingThread", func(t *testing.T) {
				s := newStore(t)
				_, err := s.GetThread(context.Background(), "nope")
				assert.ErrorIs(t, err, ErrThreadNotFound)
			})

			t.Run("ListThreadsNewestFirst", func(t *testing.T) {
				s := newStore(t, WithClock(stepClock()))
				ctx := context.Background()

				var ids []string
				for i := 0; i < 3; i++ {
					th, err := s.CreateThread(ctx, fmt.Sprintf("t%d", i))
					require.NoError(t, err)
					ids = append(ids, th.ID)
				}

				threads, err := s.ListThreads(ctx)
				require.NoError(t, err)
				require.Len(t, threads, 3)
				assert.Equal(t, []string{ids[2], ids[1], ids[0]}, threadIDs(threads))
			})

			t.Run("ListThreadsEmpty", func(t *testing.T) {
				s := newStore(t)
				threads, err := s.ListThreads(context.Background())
				require.NoError(t, err)
				assert.NotNil(t, threads)
				assert.Empty(t, threads)
			})

			t.Run("RenameThread", func(t *testing.T) {
				s := newStore(t)
				ctx := context.Background()

				th, err := s.CreateThread(ctx, DefaultThreadTitle)
				require.NoError(t, err)
				require.NoError(t, s.RenameThread(ctx, th.ID, "Renamed"))

				got, err := s.GetThread(ctx, th.ID)
				require.NoError(t, err)
				assert.Equal(t, "Renamed", got.Title)

				assert.ErrorIs(t, s.RenameThread(ctx, "missing", "x"), ErrThreadNotFound)
			})

			t.Run("AppendAndListMessages", func(t *testing.T) {
				s := newStore(t, WithClock(stepClock()))
				ctx := context.Background()

				th, err := s.CreateThread(ctx, "chat")
				require.NoError(t, err)

				tokensIn, tokensOut, latency := 12, 34, int64(250)
				_, err = s.AppendMessage(ctx, NewMessage{ThreadID: th.ID, Role: RoleUser, Content: "hello"})
				require.NoError(t, err)
				_, err = s.AppendMessage(ctx, NewMessage{
					ThreadID:  th.ID,
					Role:      RoleAssistant,
					Content:   "Hi there",
					TokensIn:  &tokensIn,
					TokensOut: &tokensOut,
					LatencyMs: &latency,
				})
				require.NoError(t, err)

				messages, err := s.Messages(ctx, th.ID)
				require.NoError(t, err)
				require.Len(t, messages, 2)

				assert.Equal(t, RoleUser, messages[0].Role)
				assert.Equal(t, "hello", messages[0].Content)
				assert.Nil(t, messages[0].TokensIn)
				assert.Nil(t, messages[0].LatencyMs)

				assert.Equal(t, RoleAssistant, messages[1].Role)
				assert.Equal(t, "Hi there", messages[1].Content)
				assert.Equal(t, th.ID, messages[1].ThreadID)
				require.NotNil(t, messages[1].TokensIn)
				assert.Equal(t, 12, *messages[1].TokensIn)
				assert.Equal(t, 34, *messages[1].TokensOut)
				assert.Equal(t, int64(250), *messages[1].LatencyMs)
			})

			t.Run("SameTimestampKeepsInsertionOrder", func(t *testing.T) {
				fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
				s := newStore(t, WithClock(func() time.Time { return fixed }))
				ctx := context.Background()

				th, err := s.CreateThread(ctx, "chat")
				require.NoError(t, err)
				for i := 0; i < 5; i++ {
					_, err := s.AppendMessage(ctx, NewMessage{ThreadID: th.ID, Role: RoleUser, Content: fmt.Sprint(i)})
					require.NoError(t, err)
				}

				messages, err := s.Messages(ctx, th.ID)
				require.NoError(t, err)
				var contents []string
				for _, m := range messages {
					contents = append(contents, m.Content)
				}
				assert.Equal(t, []string{"0", "1", "2", "3", "4"}, contents)
			})

			t.Run("AppendToMissingThread", func(t *testing.T) {
				s := newStore(t)
				_, err := s.AppendMessage(context.Background(), NewMessage{ThreadID: "missing", Role: RoleUser, Content: "x"})
				assert.ErrorIs(t, err, ErrThreadNotFound)
			})

			t.Run("DeleteThreadRemovesMessages", func(t *testing.T) {
				s := newStore(t)
				ctx := context.Background()

				th, err := s.CreateThread(ctx, "chat")
				require.NoError(t, err)
				_, err = s.AppendMessage(ctx, NewMessage{ThreadID: th.ID, Role: RoleUser, Content: "x"})
				require.NoError(t, err)

				require.NoError(t, s.DeleteThread(ctx, th.ID))
				_, err = s.GetThread(ctx, th.ID)
				assert.ErrorIs(t, err, ErrThreadNotFound)

				messages, err := s.Messages(ctx, th.ID)
				require.NoError(t, err)
				assert.Empty(t, messages)

				assert.NoError(t, s.DeleteThread(ctx, th.ID), "deleting twice is not an error")
			})

			t.Run("Settings", func(t *testing.T) {
				s := newStore(t)
				ctx := context.Background()

				settings, err := s.Settings(ctx)
				require.NoError(t, err)
				assert.Empty(t, settings)

				require.NoError(t, s.PutSettings(ctx, map[string]string{"model": "a", "temperature": "0.7"}))
				require.NoError(t, s.PutSettings(ctx, map[string]string{"model": "b"}))

				settings, err = s.Settings(ctx)
				require.NoError(t, err)
				assert.Equal(t, map[string]string{"model": "b", "temperature": "0.7"}, settings)
			})

			t.Run("ExportImportRoundTrip", func(t *testing.T) {
				src := newStore(t, WithClock(stepClock()))
				ctx := context.Background()
				seedThreads(t, src, 3, 4)

				snap, err := src.Export(ctx)
				require.NoError(t, err)
				require.Len(t, snap.Threads, 3)
				assert.Equal(t, 12, snap.MessageCount())

				var buf bytes.Buffer
				require.NoError(t, WriteSnapshot(&buf, snap))
				decoded, err := ReadSnapshot(&buf)
				require.NoError(t, err)

				dst := newStore(t)
				result, err := dst.Import(ctx, decoded)
				require.NoError(t, err)
				assert.Equal(t, ImportResult{Threads: 3, MessagesInserted: 12}, result)

				again, err := dst.Export(ctx)
				require.NoError(t, err)
				assertSnapshotsEqual(t, snap, again)

				// Importing the same snapshot again changes nothing.
				result, err = dst.Import(ctx, decoded)
				require.NoError(t, err)
				assert.Equal(t, ImportResult{Threads: 3, MessagesSkipped: 12}, result)
				again, err = dst.Export(ctx)
				require.NoError(t, err)
				assertSnapshotsEqual(t, snap, again)
			})

			t.Run("ImportUpsertsTitles", func(t *testing.T) {
				s := newStore(t)
				ctx := context.Background()

				th, err := s.CreateThread(ctx, "old")
				require.NoError(t, err)

				_, err = s.Import(ctx, &Snapshot{Threads: []ThreadSnapshot{{ID: th.ID, Title: "new", CreatedAt: th.CreatedAt}}})
				require.NoError(t, err)

				got, err := s.GetThread(ctx, th.ID)
				require.NoError(t, err)
				assert.Equal(t, "new", got.Title)
			})

			t.Run("ImportRejectsInvalidSnapshot", func(t *testing.T) {
				s := newStore(t)
				_, err := s.Import(context.Background(), &Snapshot{Threads: []ThreadSnapshot{{Title: "no id"}}})
				assert.Error(t, err)
			})

			t.Run("ConcurrentAppends", func(t *testing.T) {
				s := newStore(t)
				ctx := context.Background()
				th, err := s.CreateThread(ctx, "busy")
				require.NoError(t, err)

				var wg sync.WaitGroup
				for i := 0; i < 20; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						_, err := s.AppendMessage(ctx, NewMessage{ThreadID: th.ID, Role: RoleUser, Content: fmt.Sprint(i)})
						assert.NoError(t, err)
					}(i)
				}
				wg.Wait()

				messages, err := s.Messages(ctx, th.ID)
				require.NoError(t, err)
				assert.Len(t, messages, 20)
			})

			t.Run("Ping", func(t *testing.T) {
				s := newStore(t)
				assert.NoError(t, s.Ping(context.Background()))
			})
		})
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.CreateThread(context.Background(), "x")
	var storeErr *Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "create_thread", storeErr.Operation)
	assert.Error(t, s.Ping(context.Background()))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := SQLiteConfig{Path: filepath.Join(t.TempDir(), "nested", "chat.db"), WALMode: true}

	s, err := NewSQLiteStore(ctx, cfg)
	require.NoError(t, err)
	th, err := s.CreateThread(ctx, "kept")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, NewMessage{ThreadID: th.ID, Role: RoleUser, Content: "hello"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetThread(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Title)

	messages, err := s.Messages(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)
}

func TestNewSQLiteStoreValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewSQLiteStore(ctx, SQLiteConfig{})
	assert.Error(t, err)

	_, err = NewSQLiteStore(ctx, SQLiteConfig{Path: ":memory:", Driver: "postgres"})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Backend: BackendSQLite, SQLite: SQLiteConfig{Path: ":memory:"}})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Backend: "redis"})
	assert.Error(t, err)
}

func seedThreads(t *testing.T, s Store, threads, messages int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < threads; i++ {
		th, err := s.CreateThread(ctx, fmt.Sprintf("thread %d", i))
		require.NoError(t, err)
		for j := 0; j < messages; j++ {
			role := RoleUser
			var latency *int64
			if j%2 == 1 {
				role = RoleAssistant
				l := int64(j * 10)
				latency = &l
			}
			_, err := s.AppendMessage(ctx, NewMessage{
				ThreadID:  th.ID,
				Role:      role,
				Content:   fmt.Sprintf("message %d.%d", i, j),
				LatencyMs: latency,
			})
			require.NoError(t, err)
		}
	}
}

func assertSnapshotsEqual(t *testing.T, want, got *Snapshot) {
	t.Helper()
	require.Len(t, got.Threads, len(want.Threads))
	for i := range want.Threads {
		w, g := want.Threads[i], got.Threads[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Title, g.Title)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "thread %s createdAt", w.ID)
		require.Len(t, g.Messages, len(w.Messages))
		for j := range w.Messages {
			wm, gm := w.Messages[j], g.Messages[j]
			assert.Equal(t, wm.ID, gm.ID)
			assert.Equal(t, wm.ThreadID, gm.ThreadID)
			assert.Equal(t, wm.Role, gm.Role)
			assert.Equal(t, wm.Content, gm.Content)
			assert.Equal(t, wm.LatencyMs, gm.LatencyMs)
			assert.True(t, wm.CreatedAt.Equal(gm.CreatedAt), "message %s createdAt", wm.ID)
		}
	}
}

func threadIDs(threads []Thread) []string {
	ids := make([]string, 0, len(threads))
	for _, th := range threads {
		ids = append(ids, th.ID)
	}
	return ids
}
