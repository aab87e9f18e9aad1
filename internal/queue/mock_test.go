package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	red "research-compass/internal/infra/redis"
)

// memClient is an in-memory red.Client for queue tests: string keys with lazy
// expiry, lists, and channel-backed pub/sub.
type memClient struct {
	mu     sync.Mutex
	kv     map[string]memValue
	lists  map[string][]string
	subs   map[string][]*memSubscription
	closed bool
}

type memValue struct {
	val       string
	expiresAt time.Time
}

func newMemClient() *memClient {
	return &memClient{
		kv:    make(map[string]memValue),
		lists: make(map[string][]string),
		subs:  make(map[string][]*memSubscription),
	}
}

var _ red.Client = (*memClient)(nil)

func (m *memClient) get(key string) (string, bool) {
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

func (m *memClient) Ping(ctx context.Context) error { return nil }

func (m *memClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := memValue{val: toString(value)}
	if expiration > 0 {
		v.expiresAt = time.Now().Add(expiration)
	}
	m.kv[key] = v
	return nil
}

func (m *memClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.get(key)
	if !ok {
		return "", red.Nil
	}
	return v, nil
}

func (m *memClient) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.get(key); ok {
		return false, nil
	}
	v := memValue{val: value}
	if expiration > 0 {
		v.expiresAt = time.Now().Add(expiration)
	}
	m.kv[key] = v
	return true, nil
}

func (m *memClient) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.get(key); ok && v == value {
		delete(m.kv, key)
		return true, nil
	}
	return false, nil
}

func (m *memClient) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(0)
	if v, ok := m.get(key); ok {
		n, _ = strconv.ParseInt(v, 10, 64)
	}
	n++
	m.kv[key] = memValue{val: strconv.FormatInt(n, 10), expiresAt: m.kv[key].expiresAt}
	return n, nil
}

func (m *memClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.kv[key]; ok {
		v.expiresAt = time.Now().Add(expiration)
		m.kv[key] = v
	}
	return nil
}

func (m *memClient) Exists(ctx context.Context, keys ...string) (int64, error) {
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

func (m *memClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
		delete(m.lists, k)
	}
	return nil
}

func (m *memClient) LPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.lists[key] = append([]string{v}, m.lists[key]...)
	}
	return nil
}

func (m *memClient) RPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], values...)
	return nil
}

func (m *memClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
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

func (m *memClient) LRem(ctx context.Context, key string, count int64, value string) error {
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

func (m *memClient) LTrim(ctx context.Context, key string, start, stop int64) error {
	kept, err := m.LRange(ctx, key, start, stop)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = kept
	return nil
}

func (m *memClient) LLen(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}

func (m *memClient) BRPopLPush(ctx context.Context, source, destination string, timeout time.Duration) (string, error) {
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

func (m *memClient) Publish(ctx context.Context, channel, payload string) error {
	m.mu.Lock()
	subs := append([]*memSubscription(nil), m.subs[channel]...)
	m.mu.Unlock()
	for _, s := range subs {
		select {
		case s.out <- payload:
		default:
		}
	}
	return nil
}

type memSubscription struct {
	out  chan string
	once sync.Once
}

func (s *memSubscription) Messages() <-chan string { return s.out }
func (s *memSubscription) Close() error {
	s.once.Do(func() { close(s.out) })
	return nil
}

func (m *memClient) Subscribe(ctx context.Context, channel string) red.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &memSubscription{out: make(chan string, 256)}
	m.subs[channel] = append(m.subs[channel], sub)
	return sub
}

func (m *memClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}
