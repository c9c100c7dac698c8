package realtime

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBroker_FansOutAcrossHubs(t *testing.T) {
	s := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newInstance := func() (*Hub, *RedisBroker) {
		client := redis.NewClient(&redis.Options{Addr: s.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		hub := NewHub(nil)
		b := NewRedisBroker(client, hub, nil)
		stop, err := b.Start(ctx)
		require.NoError(t, err)
		t.Cleanup(stop)
		return hub, b
	}

	hubA, brokerA := newInstance()
	hubB, _ := newInstance()

	ownerOnA := hubA.Subscribe("owner-1")
	viewerOnB := hubB.Subscribe("viewer-1")
	defer ownerOnA.Close()
	defer viewerOnB.Close()

	brokerA.Notify(ctx, grantEvent())

	assert.Equal(t, "g-1", receive(t, ownerOnA).RecordID)
	assert.Equal(t, "g-1", receive(t, viewerOnB).RecordID)
}
