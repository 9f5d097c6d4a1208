package broadcast

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("broadcast: hub closed")

type HubMsg interface{ isHubMsg() }

type EnsureChannel struct {
	Name  string
	Reply chan *Channel
}

type GetChannel struct {
	Name  string
	Reply chan *Channel // nil reply when no one ever joined
}

type RemoveChannel struct {
	Name string
}

type ShutdownHub struct{}

func (EnsureChannel) isHubMsg() {}
func (GetChannel) isHubMsg()    {}
func (RemoveChannel) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

// Hub owns the push channels and implements Publisher over them.
type Hub struct {
	inbox    chan HubMsg
	channels map[string]*Channel
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		channels: make(map[string]*Channel),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureChannel:
				if ch := h.channels[msg.Name]; ch != nil {
					msg.Reply <- ch
					break
				}
				ch := NewChannel(h.ctx, msg.Name)
				h.channels[msg.Name] = ch
				h.log.Debug("channel opened", zap.String("channel", msg.Name))
				msg.Reply <- ch

			case GetChannel:
				msg.Reply <- h.channels[msg.Name] // may be nil

			case RemoveChannel:
				if ch := h.channels[msg.Name]; ch != nil {
					select {
					case ch.Inbox() <- Shutdown{}:
					case <-ch.Done():
					}
					delete(h.channels, msg.Name)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for name, ch := range h.channels {
		select {
		case ch.Inbox() <- Shutdown{}:
		case <-ch.Done():
		}
		delete(h.channels, name)
	}
	h.cancel()
}

func (h *Hub) ask(ctx context.Context, msg HubMsg, reply chan *Channel) (*Channel, error) {
	select {
	case h.inbox <- msg:
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case ch := <-reply:
		return ch, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ensure returns the named channel, creating it on first use.
func (h *Hub) Ensure(ctx context.Context, name string) (*Channel, error) {
	reply := make(chan *Channel, 1)
	return h.ask(ctx, EnsureChannel{Name: name, Reply: reply}, reply)
}

// Lookup returns the named channel or nil.
func (h *Hub) Lookup(ctx context.Context, name string) (*Channel, error) {
	reply := make(chan *Channel, 1)
	return h.ask(ctx, GetChannel{Name: name, Reply: reply}, reply)
}

// Publish hands ev to its channel. A channel nobody joined is not an error.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	ch, err := h.Lookup(ctx, ev.Channel)
	if err != nil || ch == nil {
		return err
	}
	select {
	case ch.Inbox() <- Deliver{Event: ev}:
		return nil
	case <-ch.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops every channel and waits for the hub loop to exit.
func (h *Hub) Close() error {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
	return nil
}
