package messaging

import (
	"context"
	"testing"

	"dchat/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureQueue struct {
	views []*domain.MessageView
	err   error
}

func (q *captureQueue) Enqueue(_ context.Context, view *domain.MessageView) error {
	if q.err != nil {
		return q.err
	}
	q.views = append(q.views, view)
	return nil
}

func TestConsumer_HandleEnqueuesDecodedEnvelope(t *testing.T) {
	queue := &captureQueue{}
	consumer := NewConsumer(nil, queue)

	view := &domain.MessageView{
		Room:              "lobby",
		ID:                1,
		SenderID:          "user-1",
		SenderDisplayName: "Alice",
		HTML:              "<span>hi</span>",
		Timestamp:         99,
	}
	body, err := EncodeEnvelope(view)
	require.NoError(t, err)

	consumer.handle(context.Background(), body)

	require.Len(t, queue.views, 1)
	assert.Equal(t, view, queue.views[0])
}

func TestConsumer_HandleDropsCorruptEnvelope(t *testing.T) {
	queue := &captureQueue{}
	consumer := NewConsumer(nil, queue)

	consumer.handle(context.Background(), []byte("not msgpack"))

	assert.Empty(t, queue.views)
}

func TestConsumer_HandleSwallowsEnqueueError(t *testing.T) {
	queue := &captureQueue{err: context.Canceled}
	consumer := NewConsumer(nil, queue)

	view := &domain.MessageView{
		Room: "lobby", ID: 1, SenderID: "u", SenderDisplayName: "u", Timestamp: 1,
	}
	body, err := EncodeEnvelope(view)
	require.NoError(t, err)

	assert.NotPanics(t, func() { consumer.handle(context.Background(), body) })
}
