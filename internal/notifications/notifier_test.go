package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"xplore/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kgo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
	}
}

func TestRedisNotifier_NilClientIsNoop(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		NewRedisNotifier(nil).Notify(context.Background(), models.Notification{Type: models.NotificationPostLike})
	})
}

func TestRedisNotifier_PublishesToRecipientChannel(t *testing.T) {
	t.Parallel()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewRedisNotifier(rdb)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, UserChannel(7))
	defer func() { _ = sub.Close() }()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	sent := models.Notification{
		Type:        models.NotificationNewComment,
		SenderID:    2,
		RecipientID: 7,
		RelatedID:   40,
		Context:     "nice",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	n.Notify(ctx, sent)

	select {
	case msg := <-sub.Channel():
		var note models.Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &note))
		assert.Equal(t, sent, note)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not received")
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kgo.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kgo.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaNotifier_KeysByRecipient(t *testing.T) {
	t.Parallel()
	w := &fakeWriter{}
	k := &KafkaNotifier{w: w}

	k.Notify(context.Background(), models.Notification{Type: models.NotificationNewFollower, SenderID: 1, RecipientID: 12})

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "12", string(w.msgs[0].Key))

	var decoded models.Notification
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, models.NotificationNewFollower, decoded.Type)
	assert.Equal(t, uint(1), decoded.SenderID)
}

func TestKafkaNotifier_SwallowsWriteErrors(t *testing.T) {
	t.Parallel()
	k := &KafkaNotifier{w: &fakeWriter{err: errors.New("broker down")}}
	assert.NotPanics(t, func() {
		k.Notify(context.Background(), models.Notification{Type: models.NotificationPostLike, RecipientID: 3})
	})
}
