package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "projecthub/contracts/mq"
	"projecthub/internal/model"
	"projecthub/pkg/mq"
)

type stubLoader struct {
	n   *model.Notification
	err error
}

func (s *stubLoader) GetByID(context.Context, int64) (*model.Notification, error) {
	return s.n, s.err
}

type recordingSender struct {
	sent []string
	err  error
}

func (s *recordingSender) Send(_ context.Context, channel string, _ *model.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, channel)
	return nil
}

type memDeduper struct {
	seen     map[string]bool
	released int
}

func (d *memDeduper) AcquireOnce(_ context.Context, scope, key string) bool {
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	k := scope + ":" + key
	if d.seen[k] {
		return false
	}
	d.seen[k] = true
	return true
}

func (d *memDeduper) Release(_ context.Context, scope, key string) {
	delete(d.seen, scope+":"+key)
	d.released++
}

type memRetries struct{ counts map[string]int64 }

func (r *memRetries) IncrementAndGet(_ context.Context, key string) (int64, error) {
	if r.counts == nil {
		r.counts = map[string]int64{}
	}
	r.counts[key]++
	return r.counts[key], nil
}

func (r *memRetries) Reset(_ context.Context, key string) error {
	delete(r.counts, key)
	return nil
}

type handlerFixture struct {
	h       *NotificationCreatedHandler
	loader  *stubLoader
	sender  *recordingSender
	dedup   *memDeduper
	retries *memRetries
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		loader:  &stubLoader{n: &model.Notification{ID: 3, UserID: 9}},
		sender:  &recordingSender{},
		dedup:   &memDeduper{},
		retries: &memRetries{},
	}
	f.h = NewNotificationCreatedHandler(f.loader, f.sender, f.dedup, f.retries, zap.NewNop())
	return f
}

func payload(t *testing.T, eventID string, channels ...string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(mqcontracts.NotificationCreatedPayload{
		EventID:        eventID,
		NotificationID: 3,
		UserID:         9,
		Channels:       channels,
	})
	require.NoError(t, err)
	return raw
}

func TestHandle_DeliversOnEveryChannelOnce(t *testing.T) {
	f := newHandlerFixture()
	msg := payload(t, "evt-1", mqcontracts.ChannelInApp, mqcontracts.ChannelEmail)

	require.NoError(t, f.h.Handle(context.Background(), msg))
	require.NoError(t, f.h.Handle(context.Background(), msg))

	assert.Equal(t, []string{mqcontracts.ChannelInApp, mqcontracts.ChannelEmail}, f.sender.sent)
}

func TestHandle_DefaultsToInApp(t *testing.T) {
	f := newHandlerFixture()

	require.NoError(t, f.h.Handle(context.Background(), payload(t, "evt-2")))
	assert.Equal(t, []string{mqcontracts.ChannelInApp}, f.sender.sent)
}

func TestHandle_BadPayloadIsPermanent(t *testing.T) {
	f := newHandlerFixture()

	err := f.h.Handle(context.Background(), json.RawMessage(`{not json`))
	assert.True(t, mq.IsPermanent(err))

	err = f.h.Handle(context.Background(), payload(t, ""))
	assert.True(t, mq.IsPermanent(err))
}

func TestHandle_MissingNotificationIsAcked(t *testing.T) {
	f := newHandlerFixture()
	f.loader.err = pgx.ErrNoRows

	assert.NoError(t, f.h.Handle(context.Background(), payload(t, "evt-3")))
	assert.Empty(t, f.sender.sent)
}

func TestHandle_RetryableFailureRequeuesThenDeadLetters(t *testing.T) {
	f := newHandlerFixture()
	f.sender.err = &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	msg := payload(t, "evt-4", mqcontracts.ChannelEmail)

	for i := 0; i < maxRetries; i++ {
		err := f.h.Handle(context.Background(), msg)
		require.Error(t, err)
		require.False(t, mq.IsPermanent(err), "attempt %d", i+1)
	}

	err := f.h.Handle(context.Background(), msg)
	assert.True(t, mq.IsPermanent(err))
	assert.Equal(t, maxRetries+1, f.dedup.released)
}

func TestHandle_UnknownFailureIsPermanent(t *testing.T) {
	f := newHandlerFixture()
	f.sender.err = errors.New("unsupported channel: SMS")

	err := f.h.Handle(context.Background(), payload(t, "evt-5", "SMS"))
	assert.True(t, mq.IsPermanent(err))
}
