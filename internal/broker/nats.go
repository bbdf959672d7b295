// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"
)

// headerPriority/headerTTL carry the advisory priority and
// time-to-live core NATS has no native concept of (spec §4.3);
// JetStream could honor TTL directly; that's a possible follow-up
// rather than built here.
const (
	headerPriority = "Krb-Priority"
	headerTTL      = "Krb-Ttl-Ms"
)

// Config is the JSON-configurable connection block for the NATS
// driver.
type Config struct {
	Address       string `json:"address"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	CredsFilePath string `json:"credsFilePath,omitempty"`

	// RetryBudget bounds the exponential backoff applied to a blocked
	// publish before NetworkError is surfaced via OnError (spec §7:
	// "retried with exponential backoff up to a bounded budget").
	RetryBudget   int           `json:"retryBudget,omitempty"`
	RetryBaseWait time.Duration `json:"retryBaseWait,omitempty"`

	// PublishRateLimit caps sustained outgoing publishes per second,
	// guarding a slow broker from being overrun by a runaway emitter.
	// Zero disables the limiter.
	PublishRateLimit int `json:"publishRateLimit,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.RetryBudget == 0 {
		c.RetryBudget = 5
	}
	if c.RetryBaseWait == 0 {
		c.RetryBaseWait = 50 * time.Millisecond
	}
	return c
}

// NATSDriver implements Driver over a nats.go connection. Topics map
// 1:1 to NATS subjects.
type NATSDriver struct {
	cfg  Config
	conn *nats.Conn

	mu   sync.Mutex
	subs map[string]*nats.Subscription

	errHandler ErrorHandler
	limiter    *rate.Limiter
}

// Dial connects to the configured NATS server and wraps it as a
// Driver.
func Dial(cfg Config) (*NATSDriver, error) {
	cfg = cfg.withDefaults()
	d := &NATSDriver{cfg: cfg, subs: make(map[string]*nats.Subscription)}
	if cfg.PublishRateLimit > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.PublishRateLimit), cfg.PublishRateLimit)
	}

	var opts []nats.Option
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}
	opts = append(opts,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				klog.Warnf("broker: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			klog.Infof("broker: reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subj := ""
			if sub != nil {
				subj = sub.Subject
			}
			d.reportError(subj, "subscription", err.Error())
		}),
	)

	conn, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("broker: connect to %q failed: %w", cfg.Address, err)
	}
	d.conn = conn
	klog.Infof("broker: connected to %s", cfg.Address)
	return d, nil
}

func (d *NATSDriver) reportError(consumerID, kind, message string) {
	if d.errHandler != nil {
		d.errHandler(consumerID, kind, message)
	}
}

func (d *NATSDriver) OnError(handler ErrorHandler) { d.errHandler = handler }

// Publish retries transient publish failures with exponential backoff
// up to cfg.RetryBudget times (RetryBudget+1 attempts in all) before
// reporting the failure through OnError and
// giving up on this one message (spec §7); the instance itself stays
// alive so a later publish can still succeed.
func (d *NATSDriver) Publish(topic string, header, body []byte, priority int, ttl time.Duration) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(context.Background()); err != nil {
			return fmt.Errorf("broker: rate limiter wait for %q: %w", topic, err)
		}
	}
	msg := &nats.Msg{
		Subject: topic,
		Data:    body,
		Header:  nats.Header{},
	}
	msg.Header.Set(headerPriority, fmt.Sprintf("%d", priority))
	if ttl > 0 {
		msg.Header.Set(headerTTL, fmt.Sprintf("%d", ttl.Milliseconds()))
	}
	msg.Header.Set("Krb-Header-Len", fmt.Sprintf("%d", len(header)))
	// The header BufferSet is carried concatenated in front of the
	// body so a single NATS message frames both; the receiving end
	// splits on the length prefix before handing (header, body) to
	// the signal/slot dispatcher.
	framed := make([]byte, 0, 4+len(header)+len(body))
	framed = append(framed, encodeLen(len(header))...)
	framed = append(framed, header...)
	framed = append(framed, body...)
	msg.Data = framed

	var err error
	wait := d.cfg.RetryBaseWait
	for attempt := 0; attempt <= d.cfg.RetryBudget; attempt++ {
		if err = d.conn.PublishMsg(msg); err == nil {
			return nil
		}
		if attempt == d.cfg.RetryBudget {
			break
		}
		time.Sleep(wait)
		wait *= 2
	}
	d.reportError(topic, "publish", err.Error())
	return fmt.Errorf("broker: publish to %q failed after %d attempts: %w", topic, d.cfg.RetryBudget+1, err)
}

func encodeLen(n int) []byte {
	return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}

func decodeLen(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16 | int(b[3])<<24
}

func (d *NATSDriver) Subscribe(topic string, handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub, err := d.conn.Subscribe(topic, func(msg *nats.Msg) {
		if len(msg.Data) < 4 {
			d.reportError(topic, "decode", "message shorter than framing prefix")
			return
		}
		hlen := decodeLen(msg.Data[:4])
		if 4+hlen > len(msg.Data) {
			d.reportError(topic, "decode", "header length prefix exceeds message size")
			return
		}
		header := msg.Data[4 : 4+hlen]
		body := msg.Data[4+hlen:]
		handler(msg.Subject, Message{Header: header, Body: body})
	})
	if err != nil {
		return fmt.Errorf("broker: subscribe to %q failed: %w", topic, err)
	}
	d.subs[topic] = sub
	return nil
}

func (d *NATSDriver) Unsubscribe(topic string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	sub, ok := d.subs[topic]
	if !ok {
		return nil
	}
	delete(d.subs, topic)
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("broker: unsubscribe from %q failed: %w", topic, err)
	}
	return nil
}

func (d *NATSDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for topic, sub := range d.subs {
		if err := sub.Unsubscribe(); err != nil {
			klog.Warnf("broker: unsubscribe from %q during close failed: %v", topic, err)
		}
	}
	d.subs = make(map[string]*nats.Subscription)
	d.conn.Close()
	return nil
}
