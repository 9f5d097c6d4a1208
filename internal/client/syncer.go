// Package client keeps a local copy of the board in step with the server.
//
// A Syncer polls GET /state, pushes local edits with POST /state and
// reacts to push events. All of its state is owned by one goroutine;
// network calls run on their own goroutines and report back to it.
package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
	"github.com/DoyleJ11/vtt-board-sync/internal/broadcast"
	"github.com/DoyleJ11/vtt-board-sync/pkg/types"
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseFetching Phase = "fetching"
	PhaseBlocked  Phase = "blocked"
	PhaseMerging  Phase = "merging"
)

var ErrClosed = errors.New("client: syncer closed")

type Msg interface{ isSyncMsg() }

type editMsg struct{ fn func(*board.BoardState) }

type notifyMsg struct{ ev broadcast.Event }

type hideMsg struct{}

type pollMsg struct{}

type socketMsg struct{ id string }

type stateMsg struct{ reply chan View }

type shutdownMsg struct{}

type fetched struct {
	resp types.StateResponse
	err  error
}

type saved struct {
	resp  types.VersionedState
	err   error
	sent  board.BoardState
	edits uint64
}

func (editMsg) isSyncMsg()     {}
func (notifyMsg) isSyncMsg()   {}
func (hideMsg) isSyncMsg()     {}
func (pollMsg) isSyncMsg()     {}
func (socketMsg) isSyncMsg()   {}
func (stateMsg) isSyncMsg()    {}
func (shutdownMsg) isSyncMsg() {}
func (fetched) isSyncMsg()     {}
func (saved) isSyncMsg()       {}

// View is a copy of the syncer's state.
type View struct {
	Phase    Phase
	Version  int64
	Dirty    bool
	Saving   bool
	SocketID string
	Board    board.BoardState

	Fetches  int // completed fetches
	Saves    int // completed successful saves
	Blocked  int // snapshots discarded because of local edits
	Stale    int // snapshots discarded as older than the applied version
	Failures int // failed saves
}

type Options struct {
	Role board.Role
	// Interval between polls.
	Interval time.Duration
	// Debounce is how long edits must be idle before they are flushed.
	Debounce time.Duration
	// Timeout bounds each request.
	Timeout time.Duration
	// OnApply is called on the loop goroutine with every board merged from
	// the server.
	OnApply func(board.BoardState)
	Log     *zap.Logger
	Now     func() time.Time
}

type Syncer struct {
	inbox chan Msg
	t     Transport
	opts  Options
	log   *zap.Logger

	local    board.BoardState
	base     board.BoardState // last server copy local edits are diffed against
	version  int64
	phase    Phase
	fetching bool
	saving   bool
	dirty    bool
	edits    uint64
	lastEdit time.Time
	socketID string
	stats    View

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, t Transport, opts Options) *Syncer {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Syncer{
		inbox:  make(chan Msg, 64),
		t:      t,
		opts:   opts,
		log:    opts.Log,
		local:  board.Empty(),
		base:   board.Empty(),
		phase:  PhaseIdle,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Syncer) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.fetch()
	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			if s.dirty && s.opts.Now().Sub(s.lastEdit) >= s.opts.Debounce {
				s.flush()
			}
			s.fetch()

		case m := <-s.inbox:
			switch msg := m.(type) {
			case editMsg:
				next := s.local.Clone()
				msg.fn(&next)
				next.Ensure()
				s.local = next
				s.dirty = true
				s.edits++
				s.lastEdit = s.opts.Now()

			case hideMsg:
				// only unsaved edits are flushed; a clean copy must not overwrite the server
				if s.dirty {
					s.flush()
				}

			case pollMsg:
				s.fetch()

			case notifyMsg:
				if msg.ev.SocketID != "" && msg.ev.SocketID == s.socketID {
					break
				}
				if msg.ev.Version != 0 && msg.ev.Version <= s.version {
					break
				}
				s.fetch()

			case socketMsg:
				s.socketID = msg.id

			case fetched:
				s.onFetched(msg)

			case saved:
				s.onSaved(msg)

			case stateMsg:
				v := s.stats
				v.Phase = s.phase
				v.Version = s.version
				v.Dirty = s.dirty
				v.Saving = s.saving
				v.SocketID = s.socketID
				v.Board = s.local.Clone()
				msg.reply <- v

			case shutdownMsg:
				s.cancel()
				return
			}
		}
	}
}

func (s *Syncer) fetch() {
	if s.fetching {
		return
	}
	s.fetching = true
	s.phase = PhaseFetching
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
		defer cancel()
		resp, err := s.t.Fetch(ctx)
		s.report(fetched{resp: resp, err: err})
	}()
}

func (s *Syncer) onFetched(m fetched) {
	s.fetching = false
	s.stats.Fetches++
	if m.err != nil {
		s.phase = PhaseIdle
		s.log.Warn("fetch failed", zap.Error(m.err))
		return
	}
	if s.dirty || s.saving {
		s.phase = PhaseBlocked
		s.stats.Blocked++
		return
	}
	remote := m.resp.BoardState
	if remote.Version < s.version {
		s.phase = PhaseIdle
		s.stats.Stale++
		return
	}

	s.phase = PhaseMerging
	s.apply(remote)
	s.phase = PhaseIdle
}

// apply merges a full server snapshot into the local board.
func (s *Syncer) apply(remote types.VersionedState) {
	doc := remote.BoardState.Clone()
	doc.Ensure()
	before := s.local.Metadata.UpdatedAt
	s.local = Reconcile(s.opts.Role, s.local, doc)
	if !s.opts.Role.IsGM() || doc.Metadata.UpdatedAt >= before {
		s.base = doc
	}
	if remote.Version > s.version {
		s.version = remote.Version
	}
	if s.opts.OnApply != nil {
		s.opts.OnApply(s.local.Clone())
	}
}

func (s *Syncer) flush() {
	if s.saving {
		return
	}
	out := Diff(s.opts.Role, s.base, s.local, s.opts.Now())
	if out.IsEmpty() {
		s.dirty = false
		return
	}
	v := s.version
	out.Version = &v
	out.SocketID = s.socketID

	s.saving = true
	s.dirty = false
	sent, edits := s.local.Clone(), s.edits
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
		defer cancel()
		resp, err := s.t.Save(ctx, out)
		s.report(saved{resp: resp, err: err, sent: sent, edits: edits})
	}()
}

func (s *Syncer) onSaved(m saved) {
	s.saving = false
	if m.err != nil {
		var se *StatusError
		if errors.As(m.err, &se) && (se.Status == http.StatusUnprocessableEntity || se.Status == http.StatusForbidden) {
			// the server will never accept this payload: drop it, along with
			// any edits stacked on top of it, and fall back to the server copy
			s.log.Warn("save rejected", zap.Int("status", se.Status), zap.String("err", se.Message))
			s.stats.Failures++
			s.local, s.dirty = s.base.Clone(), false
			if s.opts.OnApply != nil {
				s.opts.OnApply(s.local.Clone())
			}
			return
		}
		s.log.Warn("save failed, will retry", zap.Error(m.err))
		s.stats.Failures++
		s.dirty = true
		return
	}
	s.stats.Saves++
	if m.resp.Version < s.version {
		return
	}
	s.version = m.resp.Version
	if s.edits != m.edits {
		// edited while the save was in flight: later diffs start from what was sent
		s.base = m.sent
		return
	}
	// the response is the merged server document including our write
	doc := m.resp.BoardState.Clone()
	doc.Ensure()
	s.local, s.base = doc, doc.Clone()
	if s.opts.OnApply != nil {
		s.opts.OnApply(s.local.Clone())
	}
}

func (s *Syncer) report(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Syncer) send(m Msg) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.inbox <- m:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Edit changes the local board and marks it dirty. fn runs on the loop
// goroutine against a private copy.
func (s *Syncer) Edit(fn func(*board.BoardState)) error { return s.send(editMsg{fn: fn}) }

// Hide flushes unsaved edits immediately, as when the page is hidden.
func (s *Syncer) Hide() error { return s.send(hideMsg{}) }

// Poll fetches now instead of waiting for the next tick.
func (s *Syncer) Poll() error { return s.send(pollMsg{}) }

// Notify reports a push event. Our own echoes and events at or below the
// applied version are ignored; anything else triggers a fetch.
func (s *Syncer) Notify(ev broadcast.Event) error { return s.send(notifyMsg{ev: ev}) }

// SetSocketID records the push connection id sent along with saves.
func (s *Syncer) SetSocketID(id string) error { return s.send(socketMsg{id: id}) }

func (s *Syncer) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.send(stateMsg{reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Done is closed when the loop exits.
func (s *Syncer) Done() <-chan struct{} { return s.done }

// Close stops the loop. In-flight requests are cancelled.
func (s *Syncer) Close() error {
	_ = s.send(shutdownMsg{})
	<-s.done
	return nil
}
