package realtime

import (
	"context"
	"testing"
	"time"

	"media-access/internal/ports/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grantEvent() notify.Event {
	return notify.Event{
		Topic:    notify.TopicAccessGrants,
		Type:     notify.TypeInsert,
		OwnerID:  "owner-1",
		ViewerID: "viewer-1",
		RecordID: "g-1",
	}
}

func receive(t *testing.T, sub *Subscription) notify.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event for %s", sub.UserID)
		return notify.Event{}
	}
}

func TestHub_DeliversToBothParticipants(t *testing.T) {
	hub := NewHub(nil)
	owner := hub.Subscribe("owner-1")
	viewer := hub.Subscribe("viewer-1")
	other := hub.Subscribe("someone-else")
	defer owner.Close()
	defer viewer.Close()
	defer other.Close()

	hub.Notify(context.Background(), grantEvent())

	assert.Equal(t, "g-1", receive(t, owner).RecordID)
	assert.Equal(t, "g-1", receive(t, viewer).RecordID)
	select {
	case ev := <-other.Events():
		t.Fatalf("unexpected event %#v", ev)
	default:
	}
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("owner-1")
	require.Equal(t, 1, hub.Subscribers("owner-1"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers("owner-1"))

	_, open := <-sub.Events()
	assert.False(t, open)

	// no entra en pánico después de cerrar
	hub.Notify(context.Background(), grantEvent())
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nil)
	hub.buffer = 1
	sub := hub.Subscribe("owner-1")
	defer sub.Close()

	hub.Deliver(grantEvent())
	hub.Deliver(grantEvent())

	receive(t, sub)
	select {
	case <-sub.Events():
		t.Fatalf("second event should have been dropped")
	default:
	}
}
