package pipeline

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"research-compass/internal/domain"
	"research-compass/internal/domain/model"
	"research-compass/internal/domain/ports/adapter"
	red "research-compass/internal/infra/redis"
)

// eventLog records pipeline activity in emission order: progress updates from
// the reporter interleaved with repository side effects.
type eventLog struct {
	mu      sync.Mutex
	entries []any
}

func (l *eventLog) add(v any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, v)
}

func (l *eventLog) snapshot() []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]any, len(l.entries))
	copy(out, l.entries)
	return out
}

type summaryWrite struct {
	ResourceID string
	Content    string
	Rec        model.ReadRecommendation
	Status     model.EmbeddingStatus
}

type fakeResourceRepo struct {
	mu        sync.Mutex
	resources map[string]*model.Resource
	log       *eventLog
	updateErr error
}

func newFakeResourceRepo(log *eventLog) *fakeResourceRepo {
	return &fakeResourceRepo{resources: make(map[string]*model.Resource), log: log}
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
	return nil, nil
}

func (r *fakeResourceRepo) UpdateSummary(ctx context.Context, qx any, id, content string, rec model.ReadRecommendation, status model.EmbeddingStatus) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	if res, ok := r.resources[id]; ok {
		res.Content = content
		res.Recommendation = rec
		res.EmbeddingStatus = status
	}
	r.mu.Unlock()
	if r.log != nil {
		r.log.add(summaryWrite{ResourceID: id, Content: content, Rec: rec, Status: status})
	}
	return nil
}

func (r *fakeResourceRepo) UpdateEmbeddingStatus(ctx context.Context, qx any, id string, status model.EmbeddingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.resources[id]; ok {
		res.EmbeddingStatus = status
	}
	return nil
}

type fakeWorkspaceRepo struct {
	mu         sync.Mutex
	workspaces map[string]*model.Workspace
	findCalls  int
}

func newFakeWorkspaceRepo() *fakeWorkspaceRepo {
	return &fakeWorkspaceRepo{workspaces: make(map[string]*model.Workspace)}
}

func (r *fakeWorkspaceRepo) Save(ctx context.Context, qx any, ws *model.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workspaces[ws.ID] = ws
	return nil
}

func (r *fakeWorkspaceRepo) FindByID(ctx context.Context, qx any, id string) (*model.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
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

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

type fakeStore struct {
	objects map[string][]byte
}

func (s *fakeStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType, originalName string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrObjectMissing
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

type upsertCall struct {
	Collection string
	Points     []adapter.Point
}

type fakeIndex struct {
	mu      sync.Mutex
	upserts []upsertCall
	err     error
}

func (f *fakeIndex) Upsert(ctx context.Context, collection string, points []adapter.Point) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, upsertCall{Collection: collection, Points: points})
	return nil
}

type fakeAI struct {
	mu          sync.Mutex
	deltas      []string
	summary     adapter.Summary
	ideas       []adapter.IdeaSuggestion
	embedErr    error
	chatErr     error
	seenPrompts [][]adapter.Message
}

func (f *fakeAI) ChatStream(ctx context.Context, messages []adapter.Message, onDelta func(delta string) error) (string, error) {
	f.mu.Lock()
	f.seenPrompts = append(f.seenPrompts, messages)
	f.mu.Unlock()
	if f.chatErr != nil {
		return "", f.chatErr
	}
	var full string
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return "", err
		}
		full += d
	}
	return full, nil
}

func (f *fakeAI) Embed(ctx context.Context, input string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeAI) Summarize(ctx context.Context, req adapter.SummaryRequest) (adapter.Summary, error) {
	return f.summary, nil
}

func (f *fakeAI) SuggestIdeas(ctx context.Context, question string) ([]adapter.IdeaSuggestion, error) {
	return f.ideas, nil
}

func (f *fakeAI) CountTokens(ctx context.Context, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n, nil
}

func (f *fakeAI) prompts() [][]adapter.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]adapter.Message(nil), f.seenPrompts...)
}

// fakeRedis backs ContextCache and TurnWindow in tests. Only the key/value
// and list operations those helpers use are implemented; anything else panics
// through the embedded nil interface.
type fakeRedis struct {
	red.Client
	mu    sync.Mutex
	kv    map[string]string
	lists map[string][]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{kv: make(map[string]string), lists: make(map[string][]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return "", red.Nil
	}
	return v, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case string:
		f.kv[key] = v
	case []byte:
		f.kv[key] = string(v)
	}
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.kv, k)
		delete(f.lists, k)
	}
	return nil
}

func (f *fakeRedis) RPush(ctx context.Context, key string, values ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append(f.lists[key], values...)
	return nil
}

func (f *fakeRedis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.lists[key]
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
