package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis integration tests")
	}

	c, err := NewClient(addr, "", 15)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOrderStatusCacheRoundTrip(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	miss, err := c.GetCachedOrderStatus(ctx, 987654)
	require.NoError(t, err)
	assert.Nil(t, miss)

	entry := OrderStatusEntry{Status: "ACCEPTED", BuyerID: 10, SellerID: 20}
	require.NoError(t, c.CacheOrderStatus(ctx, 987654, entry))

	got, err := c.GetCachedOrderStatus(ctx, 987654)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry, *got)
}

func TestPushReachesSubscriber(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	sub := c.GetClient().Subscribe(ctx, "push:user:42")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Push(ctx, 42, []byte(`{"type":"order:update"}`)))

	select {
	case msg := <-sub.Channel():
		assert.JSONEq(t, `{"type":"order:update"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("push never reached the subscriber")
	}
}
