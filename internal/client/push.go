package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DoyleJ11/vtt-board-sync/internal/broadcast"
	"github.com/DoyleJ11/vtt-board-sync/pkg/types"
)

// Follow subscribes to the push channel at wsURL and feeds its events into
// s until ctx ends or the connection drops.
func Follow(ctx context.Context, s *Syncer, wsURL string, header http.Header) error {
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	defer s.SetSocketID("")

	for {
		var msg types.PushMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		switch msg.Type {
		case types.PushHello:
			if err := s.SetSocketID(msg.ClientID); err != nil {
				return err
			}
		case types.PushChanged:
			var ev broadcast.Event
			if err := json.Unmarshal(msg.Event, &ev); err != nil {
				continue
			}
			if err := s.Notify(ev); err != nil {
				return err
			}
		}
	}
}

// Run keeps the push subscription alive, reconnecting after retry, until ctx
// ends or s is closed. Polling continues regardless of push health.
func Run(ctx context.Context, s *Syncer, wsURL string, header http.Header, retry time.Duration, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if retry <= 0 {
		retry = 3 * time.Second
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			err := Follow(gctx, s, wsURL, header)
			if gctx.Err() != nil {
				return nil
			}
			log.Debug("push disconnected", zap.Error(err))
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(retry):
			}
		}
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return s.Close()
		case <-s.Done():
			return ErrClosed
		}
	})
	err := g.Wait()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}
