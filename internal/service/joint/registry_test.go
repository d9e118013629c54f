package joint

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"wallet-signer/internal/event"
	"wallet-signer/internal/model"
	"wallet-signer/internal/service/mq"
	"wallet-signer/pkg/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	eventsTopic    = "wallet_signer_events"
	responsesTopic = "joint_sign_responses"
)

type eventSink struct {
	mu     sync.Mutex
	events []event.JointStatusChangedEvent
}

func (s *eventSink) handle(msg *mq.Message) error {
	var e event.JointStatusChangedEvent
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return err
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *eventSink) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Status)
	}
	return out
}

func newTestRegistry(t *testing.T) (*Registry, *mq.MemoryBus, *eventSink) {
	t.Helper()
	bus := mq.NewMemoryBus()
	sink := &eventSink{}
	require.NoError(t, bus.Subscribe(context.Background(), eventsTopic, sink.handle))
	return NewRegistry(event.NewPublisher(bus, eventsTopic), time.Hour), bus, sink
}

func (f *fixture) createRequest(threshold int) CreateRequest {
	participants := make([]string, 0, len(f.accounts))
	for i := range f.accounts {
		participants = append(participants, f.addr(i))
	}
	return CreateRequest{
		Proposer:     f.addr(0),
		Participants: participants,
		Threshold:    threshold,
		Transaction:  f.signable,
	}
}

func TestRegistryCompleteAndDiscard(t *testing.T) {
	f := newFixture(t, 3, 2)
	r, _, sink := newTestRegistry(t)

	c, err := r.Create(context.Background(), f.createRequest(2))
	require.NoError(t, err)
	id := c.Metadata().ID
	assert.NotEmpty(t, id)

	_, err = r.SubmitResponse(id, f.addr(0), true, f.sign(t, 0))
	require.NoError(t, err)
	status, err := r.SubmitResponse(id, f.addr(1), true, f.sign(t, 1))
	require.NoError(t, err)
	assert.Equal(t, model.JointComplete, status)
	assert.Equal(t, []string{"complete"}, sink.statuses())

	signed, err := r.Aggregate(id)
	require.NoError(t, err)
	assert.Equal(t, f.signable.TxID(), signed.TxID)

	_, err = r.Get(id)
	assert.ErrorIs(t, err, errno.ErrNotFound)
}

func TestRegistryRejectsForeignSender(t *testing.T) {
	f := newFixture(t, 3, 2)
	other := newFixture(t, 3, 2)
	r, _, _ := newTestRegistry(t)

	req := f.createRequest(2)
	req.Transaction = other.signable
	_, err := r.Create(context.Background(), req)
	assert.ErrorIs(t, err, errno.ErrKeyMismatch)
}

func TestRegistryPastDeadline(t *testing.T) {
	f := newFixture(t, 3, 2)
	r, _, _ := newTestRegistry(t)

	req := f.createRequest(2)
	req.Deadline = time.Now().Add(-time.Minute)
	_, err := r.Create(context.Background(), req)
	assert.ErrorIs(t, err, errno.ErrSignRequestExpired)
}

func TestRegistrySweep(t *testing.T) {
	f := newFixture(t, 3, 2)
	r, _, sink := newTestRegistry(t)

	c, err := r.Create(context.Background(), f.createRequest(2))
	require.NoError(t, err)
	id := c.Metadata().ID

	_, err = r.SubmitResponse(id, f.addr(0), false, nil)
	require.NoError(t, err)
	_, err = r.SubmitResponse(id, f.addr(1), false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"declined"}, sink.statuses())

	assert.Equal(t, 1, r.Sweep())
	_, err = r.Get(id)
	assert.ErrorIs(t, err, errno.ErrNotFound)
}

func TestRegistrySweepDropsUnaggregatedAfterDeadline(t *testing.T) {
	f := newFixture(t, 3, 2)
	r, _, _ := newTestRegistry(t)

	c, err := r.Create(context.Background(), f.createRequest(2))
	require.NoError(t, err)
	id := c.Metadata().ID
	_, err = r.SubmitResponse(id, f.addr(0), true, f.sign(t, 0))
	require.NoError(t, err)
	status, err := r.SubmitResponse(id, f.addr(1), true, f.sign(t, 1))
	require.NoError(t, err)
	require.Equal(t, model.JointComplete, status)

	// 截止前保留，等待聚合
	assert.Equal(t, 0, r.Sweep())
	_, err = r.Get(id)
	require.NoError(t, err)

	deadline := c.Deadline()
	r.now = func() time.Time { return deadline }
	assert.Equal(t, 1, r.Sweep())
	_, err = r.Get(id)
	assert.ErrorIs(t, err, errno.ErrNotFound)
}

func TestResponseBridge(t *testing.T) {
	f := newFixture(t, 3, 2)
	r, bus, _ := newTestRegistry(t)

	bridge := NewResponseBridge(bus, r, responsesTopic)
	require.NoError(t, bridge.Start(context.Background()))

	c, err := r.Create(context.Background(), f.createRequest(2))
	require.NoError(t, err)
	id := c.Metadata().ID

	publish := func(msg event.JointResponseMessage) error {
		payload, err := json.Marshal(msg)
		require.NoError(t, err)
		return bus.Publish(context.Background(), responsesTopic, msg.RequestID, payload)
	}

	require.NoError(t, publish(event.JointResponseMessage{RequestID: id, Participant: f.addr(0), Signed: true, Signature: f.sign(t, 0)}))
	require.NoError(t, publish(event.JointResponseMessage{RequestID: id, Participant: f.addr(2), Signed: true, Signature: f.sign(t, 2)}))
	assert.Equal(t, model.JointComplete, c.Status())

	// 未知请求与非 JSON 消息被确认丢弃
	assert.NoError(t, publish(event.JointResponseMessage{RequestID: "missing", Participant: f.addr(0)}))
	assert.NoError(t, bus.Publish(context.Background(), responsesTopic, "", []byte("{")))
}
