package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultPublishTimeout = 2 * time.Second

// Notifier publishes events off the request path. Failures are logged and
// never returned.
type Notifier struct {
	pub     Publisher
	channel string
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup
}

func NewNotifier(pub Publisher, channel string, log *zap.Logger) *Notifier {
	if pub == nil {
		pub = Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{pub: pub, channel: channel, timeout: DefaultPublishTimeout, log: log}
}

// Channel is the push channel name clients should subscribe to.
func (n *Notifier) Channel() string { return n.channel }

// Notify returns immediately.
func (n *Notifier) Notify(ev Event) {
	ev.Channel = n.channel
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.publish(ev); err != nil {
			n.log.Warn("broadcast failed",
				zap.Int64("version", ev.Version),
				zap.String("channel", ev.Channel),
				zap.Strings("changed_fields", ev.ChangedFields),
				zap.Error(err))
		}
	}()
}

func (n *Notifier) publish(ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	return n.pub.Publish(ctx, ev)
}

// Wait blocks until in-flight publishes finish.
func (n *Notifier) Wait() { n.wg.Wait() }
