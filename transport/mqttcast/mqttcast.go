// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mqttcast publishes node status messages to an MQTT v5 broker.
//
// Each message is published to a single topic with the cycle tag in the
// "seq" user property. Client implements transport.Sender.
package mqttcast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
)

// SeqProperty is the user property carrying the cycle tag.
const SeqProperty = "seq"

// Opts holds the connection options.
type Opts struct {
	// Broker is the host:port of the broker.
	Broker string
	Topic  string
	// ClientID defaults to "rtdnode-" followed by a random UUID.
	ClientID string
	// QoS is 0 or 1.
	QoS byte
	// KeepAlive is in seconds.
	KeepAlive uint16
}

// DefaultOpts connects to a local broker.
var DefaultOpts = Opts{
	Broker:    "localhost:1883",
	Topic:     "rtdnode/status",
	QoS:       0,
	KeepAlive: 30,
}

// Client is a connected publisher.
type Client struct {
	opts Opts

	mu sync.Mutex
	c  *paho.Client
}

// Dial connects to the broker. The Opts can be nil.
func Dial(ctx context.Context, opts *Opts) (*Client, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.Topic == "" {
		return nil, errors.New("mqttcast: empty topic")
	}
	if o.QoS > 1 {
		return nil, fmt.Errorf("mqttcast: unsupported QoS %d", o.QoS)
	}
	if o.ClientID == "" {
		o.ClientID = "rtdnode-" + uuid.NewString()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", o.Broker)
	if err != nil {
		return nil, fmt.Errorf("mqttcast: %w", err)
	}
	c := paho.NewClient(paho.ClientConfig{ClientID: o.ClientID, Conn: conn})
	ack, err := c.Connect(ctx, &paho.Connect{
		ClientID:   o.ClientID,
		CleanStart: true,
		KeepAlive:  o.KeepAlive,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mqttcast: connect %s: %w", o.Broker, err)
	}
	if ack != nil && ack.ReasonCode >= 0x80 {
		conn.Close()
		return nil, fmt.Errorf("mqttcast: connect %s refused: reason %#x", o.Broker, ack.ReasonCode)
	}
	return &Client{opts: o, c: c}, nil
}

// Send implements transport.Sender.
func (c *Client) Send(ctx context.Context, payload []byte, seq uint8) error {
	c.mu.Lock()
	pc := c.c
	c.mu.Unlock()
	if pc == nil {
		return errors.New("mqttcast: closed")
	}
	_, err := pc.Publish(ctx, &paho.Publish{
		QoS:     c.opts.QoS,
		Topic:   c.opts.Topic,
		Payload: payload,
		Properties: &paho.PublishProperties{
			User: paho.UserProperties{{Key: SeqProperty, Value: strconv.Itoa(int(seq))}},
		},
	})
	if err != nil {
		return fmt.Errorf("mqttcast: publish: %w", err)
	}
	return nil
}

// ClientID returns the identifier used with the broker.
func (c *Client) ClientID() string {
	return c.opts.ClientID
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.mu.Lock()
	pc := c.c
	c.c = nil
	c.mu.Unlock()
	if pc == nil {
		return nil
	}
	return pc.Disconnect(&paho.Disconnect{ReasonCode: 0})
}

func (c *Client) String() string {
	return fmt.Sprintf("mqttcast: %s %s", c.opts.Broker, c.opts.Topic)
}
