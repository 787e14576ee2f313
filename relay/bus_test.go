package relay

import (
	"context"
	"testing"
	"time"

	"github.com/codenitrr/codelution/protocol"
)

func TestBus_DeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRouter()
	got := make(chan string, 8)
	r.Register(protocol.ChannelHost, protocol.TypeDOMValueChanged,
		func(_ context.Context, env protocol.Envelope, _ ReplyFunc) Disposition {
			got <- env.Str("value")
			return Done
		})

	b := NewBus(nil)
	b.Attach(ctx, EndpointContent, r, 8)

	for _, v := range []string{"a", "b", "c"} {
		b.Send(EndpointContent, protocol.Envelope{
			Type:    protocol.TypeDOMValueChanged,
			Payload: map[string]any{"watchId": "w1", "value": v},
		})
	}

	for _, want := range []string{"a", "b", "c"} {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("delivery order: got %q, want %q", v, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("message %q never delivered", want)
		}
	}
}

func TestBus_SendToMissingEndpointIsSwallowed(t *testing.T) {
	b := NewBus(nil)
	// Must neither block nor panic: the content context is simply not
	// ready yet and the sender moves on.
	done := make(chan struct{})
	go func() {
		b.Send(EndpointContent, protocol.Envelope{Type: protocol.TypeAction, Action: protocol.ActionCheckSidebarState})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send to missing endpoint blocked")
	}
}

func TestBus_FullInboxDropsInsteadOfBlocking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRouter()
	block := make(chan struct{})
	r.Register(protocol.ChannelHost, "stall", func(context.Context, protocol.Envelope, ReplyFunc) Disposition {
		<-block
		return Done
	})

	b := NewBus(nil)
	b.Attach(ctx, EndpointBackground, r, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Send(EndpointBackground, protocol.Envelope{Type: "stall"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on a saturated inbox")
	}
	close(block)
}

func TestBus_DetachStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRouter()
	got := make(chan struct{}, 1)
	r.Register(protocol.ChannelHost, "t", func(context.Context, protocol.Envelope, ReplyFunc) Disposition {
		got <- struct{}{}
		return Done
	})

	b := NewBus(nil)
	b.Attach(ctx, EndpointContent, r, 4)
	b.Detach(EndpointContent)

	b.Send(EndpointContent, protocol.Envelope{Type: "t"})
	select {
	case <-got:
		t.Fatal("detached endpoint still received a message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_ReplyToRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBus(nil)

	responder := NewRouter()
	responder.Register(protocol.ChannelHost, "question", func(_ context.Context, env protocol.Envelope, reply ReplyFunc) Disposition {
		reply(protocol.Envelope{Type: "answer", Payload: map[string]any{
			"requestId": env.Str("requestId"),
		}})
		return Done
	})
	b.Attach(ctx, EndpointContent, responder, 4)

	got := make(chan protocol.Envelope, 1)
	asker := NewRouter()
	asker.Register(protocol.ChannelHost, "answer", func(_ context.Context, env protocol.Envelope, _ ReplyFunc) Disposition {
		got <- env
		return Done
	})
	b.Attach(ctx, EndpointBackground, asker, 4)

	b.Send(EndpointContent, protocol.Envelope{
		Type:    "question",
		ReplyTo: EndpointBackground,
		Payload: map[string]any{"requestId": "req-9"},
	})

	select {
	case env := <-got:
		if env.Str("requestId") != "req-9" {
			t.Fatalf("answer payload: %v", env.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply never arrived at the asking endpoint")
	}
}

func TestBus_NoReplyToDiscardsReplies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBus(nil)
	handled := make(chan struct{}, 1)
	r := NewRouter()
	r.Register(protocol.ChannelHost, "question", func(_ context.Context, _ protocol.Envelope, reply ReplyFunc) Disposition {
		reply(protocol.Envelope{Type: "answer"}) // nowhere to go; must not panic
		handled <- struct{}{}
		return Done
	})
	b.Attach(ctx, EndpointContent, r, 4)

	b.Send(EndpointContent, protocol.Envelope{Type: "question"})
	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}
