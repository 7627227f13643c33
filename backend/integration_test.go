package backend

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
)

func TestMongoStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := testcontainers.Run(ctx, "mongo:7",
		testcontainers.WithExposedPorts("27017/tcp"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("27017/tcp")),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.PortEndpoint(ctx, "27017/tcp", "mongodb")
	require.NoError(t, err)

	store, err := NewMongoStore(ctx, uri, "go_travel_test", "plans")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	cost := 120.0
	older := newStoredPlan(itinerary.Plan{Title: "舊行程", Destination: "台北", Days: 1, Itinerary: expandDays("", 1)})
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	require.NoError(t, store.Create(ctx, older))

	p := newStoredPlan(itinerary.Plan{
		Title:       "北京兩日遊",
		Destination: "北京",
		Days:        2,
		Itinerary: []itinerary.DayEntry{
			{Day: 1, Date: "第1天", Title: "故宮", EstimatedCost: &cost, Activities: []itinerary.Activity{{Title: "故宮", Category: itinerary.CategorySightseeing}}},
			{Day: 2, Date: "第2天", Title: "長城", Activities: []itinerary.Activity{{Title: "八達嶺", Category: itinerary.CategorySightseeing}}},
		},
		Summary: itinerary.Summary{Highlights: []string{"故宮"}, Tips: []string{"早起"}},
	})
	require.NoError(t, store.Create(ctx, p))

	got, err := store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "北京", got.Destination)
	require.Len(t, got.Itinerary, 2)
	require.NotNil(t, got.Itinerary[0].EstimatedCost)
	assert.InDelta(t, 120, *got.Itinerary[0].EstimatedCost, 1e-9)
	assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Millisecond)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, p.ID, list[0].ID)

	title := "北京深度遊"
	require.NoError(t, store.Update(ctx, p.ID, PlanPatch{Title: &title}))
	got, err = store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Len(t, got.Itinerary, 2)

	assert.ErrorIs(t, store.Update(ctx, "missing", PlanPatch{Title: &title}), ErrPlanNotFound)
	require.NoError(t, store.Delete(ctx, p.ID))
	_, err = store.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	assert.ErrorIs(t, store.Delete(ctx, p.ID), ErrPlanNotFound)
}

func TestRedisLimiterIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := tcRedis.Run(ctx, "redis:7")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, 500*time.Millisecond, 3)
	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)

	// 視窗過去後恢復
	time.Sleep(600 * time.Millisecond)
	ok, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}
