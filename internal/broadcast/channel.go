package broadcast

import (
	"context"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

type Msg interface{ isChannelMsg() }

type Join struct {
	ClientID string
	Role     board.Role
	Outbox   chan Event // where this client wants to receive events
}

type Leave struct{ ClientID string }

type Deliver struct{ Event Event }

type Shutdown struct{}

type GetState struct {
	Reply chan View
}

func (Join) isChannelMsg()     {}
func (Leave) isChannelMsg()    {}
func (Deliver) isChannelMsg()  {}
func (Shutdown) isChannelMsg() {}
func (GetState) isChannelMsg() {}

// View is a race-free look at a channel's bookkeeping.
type View struct {
	Name        string
	Version     int64
	NumClients  int
	NumGM       int
	NumDropped  int
	LastAuthor  string
	ClientRoles map[string]board.Role
}

type subscriber struct {
	role   board.Role
	outbox chan Event
}

// Channel fans events out to the clients joined to one push channel.
type Channel struct {
	name    string
	inbox   chan Msg
	version int64
	last    string
	dropped int
	clients map[string]subscriber
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewChannel(parent context.Context, name string) *Channel {
	ctx, cancel := context.WithCancel(parent)

	c := &Channel{
		name:    name,
		inbox:   make(chan Msg, 64),
		clients: make(map[string]subscriber),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.loop()
	return c
}

func (c *Channel) loop() {
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Join:
				c.clients[msg.ClientID] = subscriber{role: msg.Role, outbox: msg.Outbox}

			case Leave:
				// the outbox may already be closed if the client was dropped
				if _, ok := c.clients[msg.ClientID]; ok {
					close(c.clients[msg.ClientID].outbox)
					delete(c.clients, msg.ClientID)
				}

			case Deliver:
				// events can arrive out of order from concurrent writers; keep the max
				if msg.Event.Version > c.version {
					c.version = msg.Event.Version
				}
				c.last = msg.Event.AuthorID
				c.broadcast(msg.Event)

			case GetState:
				v := View{
					Name:        c.name,
					Version:     c.version,
					NumClients:  len(c.clients),
					NumDropped:  c.dropped,
					LastAuthor:  c.last,
					ClientRoles: make(map[string]board.Role, len(c.clients)),
				}
				for id, s := range c.clients {
					v.ClientRoles[id] = s.role
					if s.role.IsGM() {
						v.NumGM++
					}
				}
				msg.Reply <- v

			case Shutdown:
				c.shutdown()
				return
			}
		}
	}
}

func (c *Channel) shutdown() {
	for id, s := range c.clients {
		close(s.outbox) // no more events
		delete(c.clients, id)
	}
	c.cancel()
}

func (c *Channel) broadcast(ev Event) {
	// project once per role, not once per client
	gmView, playerView := ev, ev.ForViewer(false)
	for id, s := range c.clients {
		out := playerView
		if s.role.IsGM() {
			out = gmView
		}
		select {
		case s.outbox <- out:
		default:
			// slow client, drop it; it still has polling
			close(s.outbox)
			delete(c.clients, id)
			c.dropped++
		}
	}
}

// Inbox exposes the channel's mailbox to the hub and the ws layer.
func (c *Channel) Inbox() chan<- Msg { return c.inbox }

// Done is closed once the channel stops.
func (c *Channel) Done() <-chan struct{} { return c.ctx.Done() }

// State asks the loop for a View.
func (c *Channel) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case c.inbox <- GetState{Reply: reply}:
	case <-c.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-c.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}
