package notifications

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func newHubClient(userID uuid.UUID, id string) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		send:   make(chan WSMessage, 8),
		logger: zap.NewNop(),
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	userID := uuid.New()

	a := newHubClient(userID, "a")
	b := newHubClient(userID, "b")
	hub.Register(a)
	hub.Register(b)
	if n := hub.ConnectionCount(userID); n != 2 {
		t.Fatalf("connection count: %d", n)
	}

	hub.SendToUser(userID, "notification", map[string]string{"title": "hi"})
	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			if msg.Event != "notification" {
				t.Fatalf("event: %s", msg.Event)
			}
		default:
			t.Fatalf("client %s received nothing", c.ID)
		}
	}

	hub.Unregister(a)
	hub.Unregister(b)
	if n := hub.ConnectionCount(userID); n != 0 {
		t.Fatalf("connection count after unregister: %d", n)
	}
}

func TestHubSendDuringConnectionChurn(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	userID := uuid.New()

	stop := make(chan struct{})
	done := make(chan struct{})

	// deliveries racing connect/disconnect on the same user must not panic on
	// concurrent map iteration
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				hub.SendToUser(userID, "notification", []byte(`{"n":1}`))
			}
		}
	}()

	var wg sync.WaitGroup
	const churners = 4
	for g := 0; g < churners; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c := newHubClient(userID, fmt.Sprintf("c-%d-%d", g, i))
				hub.Register(c)
				drain(c)
				hub.Unregister(c)
			}
		}(g)
	}
	wg.Wait()
	close(stop)
	<-done
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestHubPushWithoutRedisDeliversLocally(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	userID := uuid.New()
	c := newHubClient(userID, "a")
	hub.Register(c)

	hub.Push(userID, "notification", map[string]string{"title": "hello"})
	select {
	case msg := <-c.send:
		if msg.Event != "notification" {
			t.Fatalf("event: %s", msg.Event)
		}
	default:
		t.Fatal("no local delivery without redis")
	}
}
