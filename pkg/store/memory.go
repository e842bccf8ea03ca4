package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	opts     options
	seq      int64
	threads  map[string]*memThread
	owners   map[string]string // message id -> thread id
	settings map[string]string
	closed   bool
}

type memThread struct {
	thread   Thread
	seq      int64
	messages []Message
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:     defaultOptions(opts),
		threads:  make(map[string]*memThread),
		owners:   make(map[string]string),
		settings: make(map[string]string),
	}
}

func (s *MemoryStore) CreateThread(ctx context.Context, title string) (Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "create_thread"); err != nil {
		return Thread{}, err
	}

	s.seq++
	t := Thread{ID: s.opts.newID(), Title: title, CreatedAt: s.opts.now()}
	s.threads[t.ID] = &memThread{thread: t, seq: s.seq}
	return t, nil
}

func (s *MemoryStore) GetThread(ctx context.Context, id string) (Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "get_thread"); err != nil {
		return Thread{}, err
	}

	mt, ok := s.threads[id]
	if !ok {
		return Thread{}, threadNotFound(id)
	}
	return mt.thread, nil
}

func (s *MemoryStore) ListThreads(ctx context.Context) ([]Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "list_threads"); err != nil {
		return nil, err
	}

	sorted := s.sortedThreads()
	threads := make([]Thread, 0, len(sorted))
	for _, mt := range sorted {
		threads = append(threads, mt.thread)
	}
	return threads, nil
}

func (s *MemoryStore) RenameThread(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "rename_thread"); err != nil {
		return err
	}

	mt, ok := s.threads[id]
	if !ok {
		return threadNotFound(id)
	}
	mt.thread.Title = title
	return nil
}

func (s *MemoryStore) DeleteThread(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "delete_thread"); err != nil {
		return err
	}

	mt, ok := s.threads[id]
	if !ok {
		return nil
	}
	for _, m := range mt.messages {
		delete(s.owners, m.ID)
	}
	delete(s.threads, id)
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg NewMessage) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "append_message"); err != nil {
		return Message{}, err
	}

	mt, ok := s.threads[msg.ThreadID]
	if !ok {
		return Message{}, threadNotFound(msg.ThreadID)
	}

	m := Message{
		ID:        s.opts.newID(),
		ThreadID:  msg.ThreadID,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: s.opts.now(),
		TokensIn:  msg.TokensIn,
		TokensOut: msg.TokensOut,
		LatencyMs: msg.LatencyMs,
	}
	s.insert(mt, m)
	return m, nil
}

func (s *MemoryStore) Messages(ctx context.Context, threadID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "list_messages"); err != nil {
		return nil, err
	}

	mt, ok := s.threads[threadID]
	if !ok {
		return []Message{}, nil
	}
	return append([]Message(nil), mt.messages...), nil
}

func (s *MemoryStore) Export(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "export"); err != nil {
		return nil, err
	}

	snap := &Snapshot{Threads: make([]ThreadSnapshot, 0, len(s.threads))}
	for _, mt := range s.sortedThreads() {
		snap.Threads = append(snap.Threads, ThreadSnapshot{
			ID:        mt.thread.ID,
			Title:     mt.thread.Title,
			CreatedAt: mt.thread.CreatedAt,
			Messages:  append([]Message{}, mt.messages...),
		})
	}
	return snap, nil
}

func (s *MemoryStore) Import(ctx context.Context, snap *Snapshot) (ImportResult, error) {
	if err := snap.Validate(); err != nil {
		return ImportResult{}, newError("memory", "import", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "import"); err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	for _, ts := range snap.Threads {
		mt, ok := s.threads[ts.ID]
		if ok {
			mt.thread.Title = ts.Title
		} else {
			s.seq++
			mt = &memThread{
				thread: Thread{ID: ts.ID, Title: ts.Title, CreatedAt: ts.CreatedAt},
				seq:    s.seq,
			}
			s.threads[ts.ID] = mt
		}
		result.Threads++

		for _, m := range ts.Messages {
			if _, exists := s.owners[m.ID]; exists {
				result.MessagesSkipped++
				continue
			}
			s.insert(mt, m)
			result.MessagesInserted++
		}
	}
	return result, nil
}

func (s *MemoryStore) Settings(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "get_settings"); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) PutSettings(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "put_settings"); err != nil {
		return err
	}

	for k, v := range values {
		s.settings[k] = v
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.check(ctx, "ping")
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) check(ctx context.Context, op string) error {
	if s.closed {
		return newError("memory", op, errClosed)
	}
	if err := ctx.Err(); err != nil {
		return newError("memory", op, err)
	}
	return nil
}

// insert places m after every message created at or before it.
func (s *MemoryStore) insert(mt *memThread, m Message) {
	i := sort.Search(len(mt.messages), func(i int) bool {
		return mt.messages[i].CreatedAt.After(m.CreatedAt)
	})
	mt.messages = append(mt.messages, Message{})
	copy(mt.messages[i+1:], mt.messages[i:])
	mt.messages[i] = m
	s.owners[m.ID] = mt.thread.ID
}

func (s *MemoryStore) sortedThreads() []*memThread {
	out := make([]*memThread, 0, len(s.threads))
	for _, mt := range s.threads {
		out = append(out, mt)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.thread.CreatedAt.Equal(b.thread.CreatedAt) {
			return a.thread.CreatedAt.After(b.thread.CreatedAt)
		}
		return a.seq > b.seq
	})
	return out
}
