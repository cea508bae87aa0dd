package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/kennedymwaniki/resource-explorer/internal/kvstore/mock"
)

func TestRedis_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockRedisClient(ctrl)
	r := NewRedis(client, "explorer", zap.NewNop())

	client.EXPECT().Get(gomock.Any(), "explorer:favorites").Return(redis.NewStringResult(`[1]`, nil))
	got, ok, err := r.Get(context.Background(), "explorer:favorites")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1]`, string(got))

	client.EXPECT().Get(gomock.Any(), "explorer:theme").Return(redis.NewStringResult("", redis.Nil))
	_, ok, err = r.Get(context.Background(), "explorer:theme")
	require.NoError(t, err)
	assert.False(t, ok)

	client.EXPECT().Get(gomock.Any(), "explorer:theme").Return(redis.NewStringResult("", errors.New("conn refused")))
	_, _, err = r.Get(context.Background(), "explorer:theme")
	assert.Error(t, err)
}

func TestRedis_SetPublishesChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockRedisClient(ctrl)
	r := NewRedis(client, "rm", zap.NewNop())
	assert.Equal(t, "rm:changes", r.Channel())

	client.EXPECT().Set(gomock.Any(), "rm:favorites", []byte(`[42]`), gomock.Any()).Return(redis.NewStatusResult("OK", nil))
	client.EXPECT().Publish(gomock.Any(), "rm:changes", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, message any) *redis.IntCmd {
			var msg changeMessage
			require.NoError(t, json.Unmarshal(message.([]byte), &msg))
			assert.Equal(t, "rm:favorites", msg.Key)
			assert.Equal(t, r.Writer(), msg.Writer)
			return redis.NewIntResult(1, nil)
		})

	require.NoError(t, r.Set(context.Background(), "rm:favorites", []byte(`[42]`)))
}

func TestRedis_SetFailureSkipsPublish(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockRedisClient(ctrl)
	r := NewRedis(client, "", zap.NewNop())

	client.EXPECT().Set(gomock.Any(), "k", gomock.Any(), gomock.Any()).Return(redis.NewStatusResult("", errors.New("OOM")))
	assert.Error(t, r.Set(context.Background(), "k", []byte(`1`)))
}

func TestRedis_DeletePublishesChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockRedisClient(ctrl)
	r := NewRedis(client, "", zap.NewNop())

	client.EXPECT().Del(gomock.Any(), "explorer:favorites").Return(redis.NewIntResult(1, nil))
	client.EXPECT().Publish(gomock.Any(), "explorer:changes", gomock.Any()).Return(redis.NewIntResult(0, nil))
	require.NoError(t, r.Delete(context.Background(), "explorer:favorites"))
}

func TestRedis_HandleMessageIgnoresOwnWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewMockRedisClient(ctrl)
	r := NewRedis(client, "", zap.NewNop())

	seen := make(chan string, 4)
	r.notifier.subscribe(func(key string) { seen <- key })

	own, _ := json.Marshal(changeMessage{Key: "explorer:favorites", Writer: r.Writer()})
	r.handleMessage(string(own))
	r.handleMessage("not json")
	r.handleMessage(`{"writer":"someone"}`)

	other, _ := json.Marshal(changeMessage{Key: "explorer:favorites", Writer: "other"})
	r.handleMessage(string(other))

	key := <-seen
	assert.Equal(t, "explorer:favorites", key)
	assert.Empty(t, seen)

	client.EXPECT().Close().Return(nil)
	require.NoError(t, r.Close())
}
