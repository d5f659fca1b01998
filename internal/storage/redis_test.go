package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"hostelmon/internal/complaint"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedis(client, zap.NewNop())
}

func TestRedis_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	mr, store := setupTestRedis(t)

	_, err := store.Insert(ctx, sampleComplaint("id-1", "tok-1", 0))
	require.NoError(t, err)

	assert.True(t, mr.Exists("complaint:id-1"))
	got, err := mr.Get("complaint:token:tok-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got)

	found, err := store.FindOne(ctx, complaint.FieldResolveToken, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "id-1", found.ID)
	assert.Equal(t, "tok-1", found.ResolveToken)
	assert.Equal(t, "KP-7", *found.Facility)
	assert.True(t, found.CreatedAt.Equal(baseTime))

	byReporter, err := store.FindOne(ctx, complaint.FieldReporterHandle, "919800000000")
	require.NoError(t, err)
	require.NotNil(t, byReporter)
	assert.Equal(t, "id-1", byReporter.ID)

	missing, err := store.FindOne(ctx, complaint.FieldResolveToken, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedis_InsertRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	mr, store := setupTestRedis(t)

	_, err := store.Insert(ctx, sampleComplaint("id-1", "tok-1", 0))
	require.NoError(t, err)

	_, err = store.Insert(ctx, sampleComplaint("id-1", "tok-2", 0))
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = store.Insert(ctx, sampleComplaint("id-2", "tok-1", 0))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.False(t, mr.Exists("complaint:id-2"))
}

func TestRedis_InsertRollsBackWhenIndexFails(t *testing.T) {
	ctx := context.Background()
	mr, store := setupTestRedis(t)

	// a string under the sorted-set key makes ZADD fail with WRONGTYPE
	require.NoError(t, mr.Set("complaints:by_created", "corrupt"))

	_, err := store.Insert(ctx, sampleComplaint("id-1", "tok-1", 0))
	require.Error(t, err)
	assert.False(t, mr.Exists("complaint:id-1"))
	assert.False(t, mr.Exists("complaint:token:tok-1"))

	found, err := store.FindOne(ctx, complaint.FieldResolveToken, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRedis_UpdateWhereIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	_, store := setupTestRedis(t)
	_, err := store.Insert(ctx, sampleComplaint("id-1", "tok-1", 0))
	require.NoError(t, err)

	updated, err := store.UpdateWhere(ctx, complaint.FieldResolveToken, "tok-1", complaint.StatusPending, resolvePatch())
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusResolved, updated.Status)
	assert.Equal(t, "router replaced", *updated.ResolutionNote)

	stored, err := store.FindOne(ctx, complaint.FieldID, "id-1")
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusResolved, stored.Status)
	assert.Equal(t, "tok-1", stored.ResolveToken)

	_, err = store.UpdateWhere(ctx, complaint.FieldResolveToken, "tok-1", complaint.StatusPending, resolvePatch())
	assert.ErrorIs(t, err, complaint.ErrNoMatch)

	_, err = store.UpdateWhere(ctx, complaint.FieldResolveToken, "missing", complaint.StatusPending, resolvePatch())
	assert.ErrorIs(t, err, complaint.ErrNoMatch)
}

func TestRedis_ConcurrentUpdateSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	_, store := setupTestRedis(t)
	_, err := store.Insert(ctx, sampleComplaint("id-1", "tok-1", 0))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateWhere(ctx, complaint.FieldResolveToken, "tok-1", complaint.StatusPending, resolvePatch())
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestRedis_FindAllOrdering(t *testing.T) {
	ctx := context.Background()
	_, store := setupTestRedis(t)

	empty, err := store.FindAll(ctx, complaint.FieldCreatedAt, true)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i, id := range []string{"b", "a", "c"} {
		_, err := store.Insert(ctx, sampleComplaint(id, "tok-"+id, time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	desc, err := store.FindAll(ctx, complaint.FieldCreatedAt, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(desc))

	asc, err := store.FindAll(ctx, complaint.FieldCreatedAt, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, ids(asc))
}

func TestRedis_FindAllSkipsDanglingIndex(t *testing.T) {
	ctx := context.Background()
	mr, store := setupTestRedis(t)
	_, err := store.Insert(ctx, sampleComplaint("id-1", "tok-1", 0))
	require.NoError(t, err)
	_, err = store.Insert(ctx, sampleComplaint("id-2", "tok-2", time.Minute))
	require.NoError(t, err)

	mr.Del("complaint:id-1")

	all, err := store.FindAll(ctx, complaint.FieldCreatedAt, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-2"}, ids(all))
}
