package web

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"research-compass/internal/domain/model"
	red "research-compass/internal/infra/redis"
)

type fakeWorkspaceUC struct {
	CreateFunc         func(ctx context.Context, theme string, intent model.WorkspaceIntent) (*model.Workspace, error)
	GetFunc            func(ctx context.Context, id string) (*model.Workspace, error)
	UpdateFunc         func(ctx context.Context, id, theme string, intent model.WorkspaceIntent) (*model.Workspace, error)
	SetPrimaryIdeaFunc func(ctx context.Context, workspaceID, ideaID string) (*model.Workspace, error)
}

func (f *fakeWorkspaceUC) Create(ctx context.Context, theme string, intent model.WorkspaceIntent) (*model.Workspace, error) {
	return f.CreateFunc(ctx, theme, intent)
}

func (f *fakeWorkspaceUC) Get(ctx context.Context, id string) (*model.Workspace, error) {
	return f.GetFunc(ctx, id)
}

func (f *fakeWorkspaceUC) Update(ctx context.Context, id, theme string, intent model.WorkspaceIntent) (*model.Workspace, error) {
	return f.UpdateFunc(ctx, id, theme, intent)
}

func (f *fakeWorkspaceUC) SetPrimaryIdea(ctx context.Context, workspaceID, ideaID string) (*model.Workspace, error) {
	return f.SetPrimaryIdeaFunc(ctx, workspaceID, ideaID)
}

type fakeResourceUC struct {
	UploadFunc          func(ctx context.Context, workspaceID, fileName, contentType string, r io.Reader, size int64) (*model.Resource, string, error)
	GetFunc             func(ctx context.Context, id string) (*model.Resource, error)
	ListByWorkspaceFunc func(ctx context.Context, workspaceID string) ([]*model.Resource, error)
}

func (f *fakeResourceUC) Upload(ctx context.Context, workspaceID, fileName, contentType string, r io.Reader, size int64) (*model.Resource, string, error) {
	return f.UploadFunc(ctx, workspaceID, fileName, contentType, r, size)
}

func (f *fakeResourceUC) Get(ctx context.Context, id string) (*model.Resource, error) {
	return f.GetFunc(ctx, id)
}

func (f *fakeResourceUC) ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.Resource, error) {
	return f.ListByWorkspaceFunc(ctx, workspaceID)
}

type fakeConversationUC struct {
	SendFunc    func(ctx context.Context, workspaceID, content string) (*model.Message, string, error)
	HistoryFunc func(ctx context.Context, workspaceID string, limit int) ([]*model.Message, error)
}

func (f *fakeConversationUC) Send(ctx context.Context, workspaceID, content string) (*model.Message, string, error) {
	return f.SendFunc(ctx, workspaceID, content)
}

func (f *fakeConversationUC) History(ctx context.Context, workspaceID string, limit int) ([]*model.Message, error) {
	return f.HistoryFunc(ctx, workspaceID, limit)
}

// webRedis is an in-memory red.Client backing the queue registry in SSE
// tests: keys with lazy expiry, lists, and channel fan-out pub/sub.
type webRedis struct {
	mu    sync.Mutex
	kv    map[string]webValue
	lists map[string][]string
	subs  map[string][]*webSubscription
}

type webValue struct {
	val       string
	expiresAt time.Time
}

func newWebRedis() *webRedis {
	return &webRedis{
		kv:    make(map[string]webValue),
		lists: make(map[string][]string),
		subs:  make(map[string][]*webSubscription),
	}
}

var _ red.Client = (*webRedis)(nil)

func (m *webRedis) get(key string) (string, bool) {
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

func (m *webRedis) Ping(ctx context.Context) error { return nil }

func (m *webRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s string
	switch t := value.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	}
	v := webValue{val: s}
	if expiration > 0 {
		v.expiresAt = time.Now().Add(expiration)
	}
	m.kv[key] = v
	return nil
}

func (m *webRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.get(key)
	if !ok {
		return "", red.Nil
	}
	return v, nil
}

func (m *webRedis) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.get(key); ok {
		return false, nil
	}
	v := webValue{val: value}
	if expiration > 0 {
		v.expiresAt = time.Now().Add(expiration)
	}
	m.kv[key] = v
	return true, nil
}

func (m *webRedis) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.get(key); ok && v == value {
		delete(m.kv, key)
		return true, nil
	}
	return false, nil
}

func (m *webRedis) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(0)
	if v, ok := m.get(key); ok {
		n, _ = strconv.ParseInt(v, 10, 64)
	}
	n++
	m.kv[key] = webValue{val: strconv.FormatInt(n, 10), expiresAt: m.kv[key].expiresAt}
	return n, nil
}

func (m *webRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.kv[key]; ok {
		v.expiresAt = time.Now().Add(expiration)
		m.kv[key] = v
	}
	return nil
}

func (m *webRedis) Exists(ctx context.Context, keys ...string) (int64, error) {
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

func (m *webRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
		delete(m.lists, k)
	}
	return nil
}

func (m *webRedis) LPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.lists[key] = append([]string{v}, m.lists[key]...)
	}
	return nil
}

func (m *webRedis) RPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

func (m *webRedis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
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

func (m *webRedis) LRem(ctx context.Context, key string, count int64, value string) error {
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

func (m *webRedis) LTrim(ctx context.Context, key string, start, stop int64) error {
	kept, err := m.LRange(ctx, key, start, stop)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = kept
	return nil
}

func (m *webRedis) LLen(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}

func (m *webRedis) BRPopLPush(ctx context.Context, source, destination string, timeout time.Duration) (string, error) {
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

func (m *webRedis) Publish(ctx context.Context, channel, payload string) error {
	m.mu.Lock()
	subs := append([]*webSubscription(nil), m.subs[channel]...)
	m.mu.Unlock()
	for _, s := range subs {
		select {
		case s.out <- payload:
		default:
		}
	}
	return nil
}

type webSubscription struct {
	out  chan string
	once sync.Once
}

func (s *webSubscription) Messages() <-chan string { return s.out }
func (s *webSubscription) Close() error {
	s.once.Do(func() { close(s.out) })
	return nil
}

func (m *webRedis) Subscribe(ctx context.Context, channel string) red.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &webSubscription{out: make(chan string, 256)}
	m.subs[channel] = append(m.subs[channel], sub)
	return sub
}

func (m *webRedis) Close() error { return nil }
