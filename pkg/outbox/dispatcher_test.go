package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projecthub/pkg/trace"
)

type fakeStore struct {
	mu      sync.Mutex
	events  map[int64]*Event
	sent    []int64
	failed  map[int64]string
	retries int
}

func newFakeStore(events ...*Event) *fakeStore {
	s := &fakeStore{events: map[int64]*Event{}, failed: map[int64]string{}}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for id := int64(1); id <= int64(len(s.events)) && len(out) < limit; id++ {
		if e, ok := s.events[id]; ok && e.Status == StatusPending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkAsSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id].Status = StatusSent
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, id int64, maxRetries int, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.events[id]
	e.RetryCount++
	if e.RetryCount >= maxRetries {
		e.Status = StatusFailed
	}
	s.failed[id] = cause
	return nil
}

func (s *fakeStore) GetEventByID(_ context.Context, id int64) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (s *fakeStore) GetFailedEvents(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for id := int64(1); id <= int64(len(s.events)) && len(out) < limit; id++ {
		if e := s.events[id]; e != nil && e.Status == StatusFailed {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) ResetToPending(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id].Status = StatusPending
	s.events[id].RetryCount = 0
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	keys     []string
	traceIDs []string
	bodies   []json.RawMessage
	err      error
}

func (p *recordingPublisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	p.traceIDs = append(p.traceIDs, trace.FromContext(ctx))
	p.bodies = append(p.bodies, payload.(json.RawMessage))
	return nil
}

func pending(id int64, key, payload string) *Event {
	return &Event{ID: id, RoutingKey: key, Payload: json.RawMessage(payload), Status: StatusPending}
}

func TestDispatcher_RunOncePublishesAndMarksSent(t *testing.T) {
	store := newFakeStore(
		pending(1, "notification.created", `{"event_id":"a","trace_id":"t-1"}`),
		pending(2, "notification.created", `{"event_id":"b"}`),
	)
	pub := &recordingPublisher{}
	d := NewDispatcher(store, pub, zap.NewNop())

	sent := d.RunOnce(context.Background())

	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 2}, store.sent)
	assert.Equal(t, []string{"t-1", ""}, pub.traceIDs)
	assert.JSONEq(t, `{"event_id":"a","trace_id":"t-1"}`, string(pub.bodies[0]))
}

func TestDispatcher_PublishFailureParksAfterMaxRetries(t *testing.T) {
	store := newFakeStore(pending(1, "notification.created", `{}`))
	pub := &recordingPublisher{err: errors.New("channel closed")}
	d := NewDispatcher(store, pub, zap.NewNop()).WithMaxRetries(2)

	assert.Equal(t, 0, d.RunOnce(context.Background()))
	assert.Equal(t, StatusPending, store.events[1].Status)

	assert.Equal(t, 0, d.RunOnce(context.Background()))
	assert.Equal(t, StatusFailed, store.events[1].Status)
	assert.Equal(t, "channel closed", store.failed[1])

	// parked events are no longer picked up
	assert.Equal(t, 0, d.RunOnce(context.Background()))
	assert.Equal(t, 2, store.events[1].RetryCount)
}

func TestReplayService_OnlyFailedEvents(t *testing.T) {
	failed := pending(1, "notification.created", `{}`)
	failed.Status = StatusFailed
	failed.RetryCount = 5
	store := newFakeStore(failed, pending(2, "notification.created", `{}`))
	svc := NewReplayService(store, zap.NewNop())

	require.NoError(t, svc.ReplayEvent(context.Background(), 1))
	assert.Equal(t, StatusPending, store.events[1].Status)
	assert.Zero(t, store.events[1].RetryCount)

	err := svc.ReplayEvent(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotReplayable)

	_, err = svc.store.GetEventByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestReplayService_ReplayFailedEvents(t *testing.T) {
	a := pending(1, "k", `{}`)
	a.Status = StatusFailed
	b := pending(2, "k", `{}`)
	b.Status = StatusFailed
	store := newFakeStore(a, b, pending(3, "k", `{}`))
	svc := NewReplayService(store, zap.NewNop())

	n, err := svc.ReplayFailedEvents(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, StatusPending, store.events[2].Status)
}

func TestTraceIDOf(t *testing.T) {
	assert.Equal(t, "abc", traceIDOf(json.RawMessage(`{"trace_id":"abc"}`)))
	assert.Equal(t, "", traceIDOf(json.RawMessage(`not json`)))
}
