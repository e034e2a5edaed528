package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sashko-guz/objstore/internal/cache"
	"github.com/sashko-guz/objstore/internal/logger"
)

func newTestCachedClient(t *testing.T, underlying Client, withDisk bool) *CachedClient {
	t.Helper()
	memory, err := cache.NewLRUCache(cache.LRUCacheConfig{Name: "test", MaxItems: 16, Logger: logger.Nop()})
	require.NoError(t, err)

	cs := &CachedClient{
		underlying: underlying,
		memory:     memory,
		ttl:        time.Minute,
		name:       "test",
		log:        logger.Nop(),
	}
	if withDisk {
		disk, err := cache.NewDiskCache(cache.DiskCacheConfig{
			BasePath:        t.TempDir(),
			TTL:             time.Hour,
			CleanupInterval: -1,
			Logger:          logger.Nop(),
		})
		require.NoError(t, err)
		cs.disk = disk
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func readAll(t *testing.T, out *s3.GetObjectOutput) string {
	t.Helper()
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	return string(data)
}

func getInput(bucket, key string) *s3.GetObjectInput {
	return &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
}

func TestCachedClientServesRepeatsFromMemory(t *testing.T) {
	client := &fakeClient{getFn: func(string, string) (*s3.GetObjectOutput, error) {
		out := bodyOutput(`{"a":1}`)
		out.ETag = aws.String(`"e1"`)
		return out, nil
	}}
	cs := newTestCachedClient(t, client, false)
	ctx := context.Background()

	first, err := cs.GetObject(ctx, getInput("b", "k"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, readAll(t, first))
	assert.Equal(t, `"e1"`, aws.ToString(first.ETag))

	second, err := cs.GetObject(ctx, getInput("b", "k"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, readAll(t, second))
	assert.Equal(t, int64(7), aws.ToInt64(second.ContentLength))

	assert.Equal(t, 1, client.getCount())
}

func TestCachedClientPromotesDiskHits(t *testing.T) {
	client := &fakeClient{getFn: func(string, string) (*s3.GetObjectOutput, error) {
		return bodyOutput(`[1,2]`), nil
	}}
	cs := newTestCachedClient(t, client, true)
	ctx := context.Background()

	_, err := cs.GetObject(ctx, getInput("b", "k"))
	require.NoError(t, err)

	cs.memory.Clear()
	out, err := cs.GetObject(ctx, getInput("b", "k"))
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, readAll(t, out))

	_, found := cs.memory.Get(cacheKey("b", "k"))
	assert.True(t, found)
	assert.Equal(t, 1, client.getCount())
}

func TestCachedClientDoesNotCacheErrors(t *testing.T) {
	notFound := errors.New("not found")
	var calls atomic.Int32
	client := &fakeClient{getFn: func(string, string) (*s3.GetObjectOutput, error) {
		if calls.Add(1) == 1 {
			return nil, notFound
		}
		return bodyOutput(`{}`), nil
	}}
	cs := newTestCachedClient(t, client, true)
	ctx := context.Background()

	_, err := cs.GetObject(ctx, getInput("b", "k"))
	assert.True(t, err == notFound, "expected the exact client error, got %v", err)

	out, err := cs.GetObject(ctx, getInput("b", "k"))
	require.NoError(t, err)
	assert.Equal(t, `{}`, readAll(t, out))
	assert.Equal(t, 2, client.getCount())
}

func TestCachedClientPutInvalidates(t *testing.T) {
	var version atomic.Int32
	client := &fakeClient{getFn: func(string, string) (*s3.GetObjectOutput, error) {
		if version.Load() == 0 {
			return bodyOutput(`{"v":0}`), nil
		}
		return bodyOutput(`{"v":1}`), nil
	}}
	cs := newTestCachedClient(t, client, true)
	ctx := context.Background()

	out, err := cs.GetObject(ctx, getInput("b", "k"))
	require.NoError(t, err)
	assert.Equal(t, `{"v":0}`, readAll(t, out))

	version.Store(1)
	_, err = cs.PutObject(ctx, &s3.PutObjectInput{Bucket: aws.String("b"), Key: aws.String("k")})
	require.NoError(t, err)

	out, err = cs.GetObject(ctx, getInput("b", "k"))
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, readAll(t, out))
	assert.Equal(t, 2, client.getCount())
}

func TestCachedClientFailedPutKeepsCache(t *testing.T) {
	denied := errors.New("denied")
	client := &fakeClient{
		getFn: func(string, string) (*s3.GetObjectOutput, error) { return bodyOutput(`{}`), nil },
		putFn: func(string, string) (*s3.PutObjectOutput, error) { return nil, denied },
	}
	cs := newTestCachedClient(t, client, false)
	ctx := context.Background()

	_, err := cs.GetObject(ctx, getInput("b", "k"))
	require.NoError(t, err)

	_, err = cs.PutObject(ctx, &s3.PutObjectInput{Bucket: aws.String("b"), Key: aws.String("k")})
	assert.True(t, err == denied)

	_, found := cs.memory.Get(cacheKey("b", "k"))
	assert.True(t, found)
}

func TestCachedClientSharesConcurrentMisses(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{getFn: func(string, string) (*s3.GetObjectOutput, error) {
		<-release
		return bodyOutput(`{"shared":true}`), nil
	}}
	cs := newTestCachedClient(t, client, false)

	const n = 8
	var wg sync.WaitGroup
	bodies := make([]string, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := cs.GetObject(context.Background(), getInput("b", "k"))
			if assert.NoError(t, err) {
				data, _ := io.ReadAll(out.Body)
				bodies[i] = string(data)
			}
		}()
	}

	// Let the goroutines pile up on the in-flight call before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, body := range bodies {
		assert.Equal(t, `{"shared":true}`, body)
	}
	assert.LessOrEqual(t, client.getCount(), n)
	assert.GreaterOrEqual(t, client.getCount(), 1)
}

// blockingClient holds every GetObject until release is closed or the
// call's own context ends.
type blockingClient struct {
	fakeClient
	started chan struct{}
	release chan struct{}
	once    sync.Once
	err     error
}

func newBlockingClient(err error) *blockingClient {
	return &blockingClient{started: make(chan struct{}), release: make(chan struct{}), err: err}
}

func (b *blockingClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	b.gets = append(b.gets, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	b.mu.Unlock()
	b.once.Do(func() { close(b.started) })

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
	}
	if b.err != nil {
		return nil, b.err
	}
	return bodyOutput(`{"shared":true}`), nil
}

func TestCachedClientCanceledCallerDoesNotFailJoinedCaller(t *testing.T) {
	client := newBlockingClient(nil)
	cs := newTestCachedClient(t, client, false)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cs.GetObject(ctxA, getInput("b", "k"))
		errA <- err
	}()
	<-client.started

	type result struct {
		body string
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		out, err := cs.GetObject(context.Background(), getInput("b", "k"))
		if err != nil {
			resB <- result{err: err}
			return
		}
		data, _ := io.ReadAll(out.Body)
		resB <- result{body: string(data)}
	}()

	// Give the second caller time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(client.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, `{"shared":true}`, b.body)
	assert.Equal(t, 1, client.getCount())
}

func TestCachedClientCallerHonorsOwnDeadline(t *testing.T) {
	client := newBlockingClient(nil)
	cs := newTestCachedClient(t, client, false)
	defer close(client.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cs.GetObject(ctx, getInput("b", "k"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachedClientJoinedCallersGetUnderlyingError(t *testing.T) {
	denied := errors.New("access denied")
	client := newBlockingClient(denied)
	cs := newTestCachedClient(t, client, true)

	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = cs.GetObject(context.Background(), getInput("b", "k"))
		}()
	}

	<-client.started
	time.Sleep(50 * time.Millisecond)
	close(client.release)
	wg.Wait()

	for _, err := range errs {
		assert.True(t, err == denied, "expected the exact client error, got %v", err)
	}
	_, found := cs.memory.Get(cacheKey("b", "k"))
	assert.False(t, found)
	_, err := cs.disk.Get(cacheKey("b", "k"))
	assert.Error(t, err)
}

func TestCachedClientNilOutput(t *testing.T) {
	client := &fakeClient{getFn: func(string, string) (*s3.GetObjectOutput, error) {
		return nil, nil
	}}
	cs := newTestCachedClient(t, client, false)

	out, err := cs.GetObject(context.Background(), getInput("b", "k"))
	require.NoError(t, err)
	assert.Equal(t, "", readAll(t, out))
}

func TestServiceOverCachedClient(t *testing.T) {
	client := &fakeClient{getFn: func(string, string) (*s3.GetObjectOutput, error) {
		return bodyOutput(`{"a":1}`), nil
	}}
	cs := newTestCachedClient(t, client, false)
	svc, _ := newTestService(t, cs)

	for range 3 {
		got, err := svc.GetObject(context.Background(), Params{Bucket: "b", Key: "k"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": float64(1)}, got)
	}
	assert.Equal(t, 1, client.getCount())
}

func TestServiceClearCache(t *testing.T) {
	client := &fakeClient{getFn: func(string, string) (*s3.GetObjectOutput, error) {
		return bodyOutput(`{"a":1}`), nil
	}}
	cs := newTestCachedClient(t, client, true)
	svc, _ := newTestService(t, cs)
	ctx := context.Background()

	_, err := svc.GetObject(ctx, Params{Bucket: "b", Key: "k"})
	require.NoError(t, err)
	require.NoError(t, svc.ClearCache())

	_, err = svc.GetObject(ctx, Params{Bucket: "b", Key: "k"})
	require.NoError(t, err)
	assert.Equal(t, 2, client.getCount())

	plain, _ := newTestService(t, client)
	assert.NoError(t, plain.ClearCache())
}
