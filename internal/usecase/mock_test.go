package usecase

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/adapter"
	"research-compass/internal/domain/ports/repository"
	red "research-compass/internal/infra/redis"
)

// fakeTxHandle stands in for the pgx.Tx a real manager would hand out.
type fakeTxHandle struct{}

type fakeTxManager struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *fakeTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	return fn(ctx, &fakeTxHandle{})
}

type fakeWorkspaceRepo struct {
	mu         sync.Mutex
	workspaces map[string]*model.Workspace
	primarySet [][2]string
	saveQx     []any
}

func newFakeWorkspaceRepo() *fakeWorkspaceRepo {
	return &fakeWorkspaceRepo{workspaces: make(map[string]*model.Workspace)}
}

func (r *fakeWorkspaceRepo) Save(ctx context.Context, qx any, ws *model.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workspaces[ws.ID] = ws
	r.saveQx = append(r.saveQx, qx)
	return nil
}

func (r *fakeWorkspaceRepo) FindByID(ctx context.Context, qx any, id string) (*model.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (r *fakeWorkspaceRepo) Update(ctx context.Context, qx any, ws *model.Workspace) error {
	return r.Save(ctx, qx, ws)
}

func (r *fakeWorkspaceRepo) SetPrimaryIdea(ctx context.Context, qx any, workspaceID, ideaID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range ws.Ideas {
		ws.Ideas[i].Primary = ws.Ideas[i].ID == ideaID
	}
	r.primarySet = append(r.primarySet, [2]string{workspaceID, ideaID})
	return nil
}

type fakeResourceRepo struct {
	mu        sync.Mutex
	resources map[string]*model.Resource
}

func newFakeResourceRepo() *fakeResourceRepo {
	return &fakeResourceRepo{resources: make(map[string]*model.Resource)}
}

func (r *fakeResourceRepo) Save(ctx context.Context, qx any, res *model.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[res.ID] = res
	return nil
}

func (r *fakeResourceRepo) FindByID(ctx context.Context, qx any, id string) (*model.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *fakeResourceRepo) ListByWorkspace(ctx context.Context, qx any, workspaceID string) ([]*model.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Resource
	for _, res := range r.resources {
		if res.WorkspaceID == workspaceID {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeResourceRepo) UpdateSummary(ctx context.Context, qx any, id, content string, rec model.ReadRecommendation, status model.EmbeddingStatus) error {
	return nil
}

func (r *fakeResourceRepo) UpdateEmbeddingStatus(ctx context.Context, qx any, id string, status model.EmbeddingStatus) error {
	return nil
}

type fakeMessageRepo struct {
	mu    sync.Mutex
	saved []*model.Message
}

func (r *fakeMessageRepo) Save(ctx context.Context, qx any, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, msg)
	return nil
}

func (r *fakeMessageRepo) ListByWorkspace(ctx context.Context, qx any, workspaceID string, limit int) ([]*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Message(nil), r.saved...), nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType, originalName string) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrObjectMissing
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type fakeAI struct {
	suggestions []adapter.IdeaSuggestion
	suggestErr  error
}

func (f *fakeAI) ChatStream(ctx context.Context, messages []adapter.Message, onDelta func(delta string) error) (string, error) {
	return "", nil
}

func (f *fakeAI) Embed(ctx context.Context, input string) ([]float32, error) {
	return []float32{0}, nil
}

func (f *fakeAI) Summarize(ctx context.Context, req adapter.SummaryRequest) (adapter.Summary, error) {
	return adapter.Summary{}, nil
}

func (f *fakeAI) SuggestIdeas(ctx context.Context, question string) ([]adapter.IdeaSuggestion, error) {
	if f.suggestErr != nil {
		return nil, f.suggestErr
	}
	return f.suggestions, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, messages []adapter.Message) (int, error) {
	return 0, nil
}

// ucRedis is the in-memory red.Client behind the context cache, rate limiter
// and job queue in these tests.
type ucRedis struct {
	mu    sync.Mutex
	kv    map[string]ucValue
	lists map[string][]string
	subs  map[string][]*ucSubscription
}

type ucValue struct {
	val       string
	expiresAt time.Time
}

func newUCRedis() *ucRedis {
	return &ucRedis{
		kv:    make(map[string]ucValue),
		lists: make(map[string][]string),
		subs:  make(map[string][]*ucSubscription),
	}
}

var _ red.Client = (*ucRedis)(nil)

func (m *ucRedis) get(key string) (string, bool) {
	v, ok := m.kv[key]
	if !ok {
		return "", false
	}
	if !v.expiresAt.IsZero() && time.Now().After(v.expiresAt) {
		delete(m.kv, key)
		return "", false
	}
	return v.val, true
}

func (m *ucRedis) Ping(ctx context.Context) error { return nil }

func (m *ucRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s string
	switch t := value.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	}
	v := ucValue{val: s}
	if expiration > 0 {
		v.expiresAt = time.Now().Add(expiration)
	}
	m.kv[key] = v
	return nil
}

func (m *ucRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.get(key)
	if !ok {
		return "", red.Nil
	}
	return v, nil
}

func (m *ucRedis) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.get(key); ok {
		return false, nil
	}
	v := ucValue{val: value}
	if expiration > 0 {
		v.expiresAt = time.Now().Add(expiration)
	}
	m.kv[key] = v
	return true, nil
}

func (m *ucRedis) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.get(key); ok && v == value {
		delete(m.kv, key)
		return true, nil
	}
	return false, nil
}

func (m *ucRedis) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(0)
	if v, ok := m.get(key); ok {
		n, _ = strconv.ParseInt(v, 10, 64)
	}
	n++
	m.kv[key] = ucValue{val: strconv.FormatInt(n, 10), expiresAt: m.kv[key].expiresAt}
	return n, nil
}

func (m *ucRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.kv[key]; ok {
		v.expiresAt = time.Now().Add(expiration)
		m.kv[key] = v
	}
	return nil
}

func (m *ucRedis) Exists(ctx context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.get(k); ok {
			n++
		}
	}
	return n, nil
}

func (m *ucRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
		delete(m.lists, k)
	}
	return nil
}

func (m *ucRedis) LPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.lists[key] = append([]string{v}, m.lists[key]...)
	}
	return nil
}

func (m *ucRedis) RPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

func (m *ucRedis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (m *ucRedis) LRem(ctx context.Context, key string, count int64, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	removed := int64(0)
	out := list[:0]
	for _, v := range list {
		if v == value && (count == 0 || removed < count) {
			removed++
			continue
		}
		out = append(out, v)
	}
	m.lists[key] = out
	return nil
}

func (m *ucRedis) LTrim(ctx context.Context, key string, start, stop int64) error {
	kept, err := m.LRange(ctx, key, start, stop)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = kept
	return nil
}

func (m *ucRedis) LLen(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}

func (m *ucRedis) BRPopLPush(ctx context.Context, source, destination string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if list := m.lists[source]; len(list) > 0 {
			v := list[len(list)-1]
			m.lists[source] = list[:len(list)-1]
			m.lists[destination] = append([]string{v}, m.lists[destination]...)
			m.mu.Unlock()
			return v, nil
		}
		m.mu.Unlock()
		if time.Now().After(deadline) {
			return "", red.Nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (m *ucRedis) Publish(ctx context.Context, channel, payload string) error {
	m.mu.Lock()
	subs := append([]*ucSubscription(nil), m.subs[channel]...)
	m.mu.Unlock()
	for _, s := range subs {
		select {
		case s.out <- payload:
		default:
		}
	}
	return nil
}

type ucSubscription struct {
	out  chan string
	once sync.Once
}

func (s *ucSubscription) Messages() <-chan string { return s.out }
func (s *ucSubscription) Close() error {
	s.once.Do(func() { close(s.out) })
	return nil
}

func (m *ucRedis) Subscribe(ctx context.Context, channel string) red.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &ucSubscription{out: make(chan string, 256)}
	m.subs[channel] = append(m.subs[channel], sub)
	return sub
}

func (m *ucRedis) Close() error { return nil }
