package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"chara_shop/pkg/cache"

	"github.com/stretchr/testify/assert"
)

// recordingCache 记录删除调用的缓存替身
type recordingCache struct {
	deleted  []string
	patterns []string
	err      error
}

func (c *recordingCache) Get(ctx context.Context, key string, dest interface{}) error {
	return cache.ErrCacheMiss
}

func (c *recordingCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (c *recordingCache) Delete(ctx context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	return c.err
}

func (c *recordingCache) DeletePattern(ctx context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	return c.err
}

func TestInvalidationPool_ProcessTaskClearsBothLayers(t *testing.T) {
	remote := &recordingCache{}
	local := &recordingCache{}
	pool := NewInvalidationPool(remote, local, 1, 4)

	err := pool.processTask(InvalidationTask{
		Keys:     []string{"recommend:popular:7"},
		Patterns: []string{"recommend:popular:*"},
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"recommend:popular:7"}, remote.deleted)
	assert.Equal(t, []string{"recommend:popular:7"}, local.deleted)
	assert.Equal(t, []string{"recommend:popular:*"}, remote.patterns)
	assert.Equal(t, []string{"recommend:popular:*"}, local.patterns)
}

func TestInvalidationPool_RemoteFailureIsTaskFailure(t *testing.T) {
	remote := &recordingCache{err: errors.New("redis down")}
	local := &recordingCache{}
	pool := NewInvalidationPool(remote, local, 1, 4)

	err := pool.processTask(InvalidationTask{Patterns: []string{"recommend:popular:*"}})
	assert.Error(t, err)
	// 本地副本的清理不受远程失败影响
	assert.Equal(t, []string{"recommend:popular:*"}, local.patterns)
}

func TestInvalidationPool_FailedTaskIsRequeued(t *testing.T) {
	remote := &recordingCache{err: errors.New("redis down")}
	pool := NewInvalidationPool(remote, &recordingCache{}, 1, 4)

	go pool.worker(0)
	pool.AddTask(InvalidationTask{Keys: []string{"recommend:popular:7"}})

	select {
	case requeued := <-pool.RetryQueue:
		assert.Equal(t, 1, requeued.Retry)
	case <-time.After(2 * time.Second):
		t.Fatal("expected failed task to enter the retry queue")
	}
	close(pool.TaskQueue)
}
