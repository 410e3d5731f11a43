package notify

import (
	"testing"
)

func TestBusPublish(t *testing.T) {
	t.Run("delivers to all subscribers", func(t *testing.T) {
		bus := NewBus()
		a := make(chan Event, 1)
		b := make(chan Event, 1)
		bus.Subscribe(a)
		bus.Subscribe(b)

		bus.Publish(Event{Name: "todos:create", Tenant: "tenant-a"})

		if got := <-a; got.Name != "todos:create" {
			t.Fatalf("unexpected event: %+v", got)
		}
		if got := <-b; got.Tenant != "tenant-a" {
			t.Fatalf("unexpected event: %+v", got)
		}
	})

	t.Run("full subscriber does not block publish", func(t *testing.T) {
		bus := NewBus()
		full := make(chan Event) // unbuffered, nobody reading
		ok := make(chan Event, 1)
		bus.Subscribe(full)
		bus.Subscribe(ok)

		done := make(chan struct{})
		go func() {
			bus.Publish(Event{Name: "todos:update"})
			close(done)
		}()

		<-done
		if got := <-ok; got.Name != "todos:update" {
			t.Fatalf("unexpected event: %+v", got)
		}
	})

	t.Run("closed subscriber does not panic the publisher", func(t *testing.T) {
		bus := NewBus()
		closed := make(chan Event)
		close(closed)
		bus.Subscribe(closed)

		bus.Publish(Event{Name: "todos:delete"})
	})

	t.Run("publish with no subscribers is a no-op", func(t *testing.T) {
		NewBus().Publish(Event{Name: "todos:create"})
	})
}
