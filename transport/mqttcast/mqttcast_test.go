// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mqttcast

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/GermanBionicSystems/rtdnode/transport"
	"github.com/eclipse/paho.golang/paho"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	topic   string
	payload string
	seq     string
}

// startBroker runs an in-process broker and returns its address.
func startBroker(t *testing.T, port int) string {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		ID:      fmt.Sprintf("t%d", port),
		Type:    "tcp",
		Address: addr,
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { broker.Close() })
	return addr
}

// subscribe connects a second client that forwards everything published on
// topic.
func subscribe(ctx context.Context, t *testing.T, addr, topic string) <-chan received {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	require.NoError(t, err)
	msgs := make(chan received, 8)
	c := paho.NewClient(paho.ClientConfig{
		ClientID: "listener",
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				p := pr.Packet
				r := received{topic: p.Topic, payload: string(p.Payload)}
				if p.Properties != nil {
					r.seq = p.Properties.User.Get(SeqProperty)
				}
				msgs <- r
				return true, nil
			},
		},
	})
	_, err = c.Connect(ctx, &paho.Connect{ClientID: "listener", CleanStart: true, KeepAlive: 5})
	require.NoError(t, err)
	_, err = c.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 1}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Disconnect(&paho.Disconnect{}) })
	return msgs
}

func next(t *testing.T, msgs <-chan received) received {
	select {
	case r := <-msgs:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("no message")
	}
	return received{}
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	addr := startBroker(t, 18831)
	msgs := subscribe(ctx, t, addr, "rtdnode/#")

	c, err := Dial(ctx, &Opts{Broker: addr, Topic: "rtdnode/status", QoS: 1, KeepAlive: 5})
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, strings.HasPrefix(c.ClientID(), "rtdnode-"))

	require.NoError(t, c.Send(ctx, []byte("P3300 S:0024 T:+2350"), 17))
	r := next(t, msgs)
	assert.Equal(t, received{topic: "rtdnode/status", payload: "P3300 S:0024 T:+2350", seq: "17"}, r)
}

func TestBroadcaster(t *testing.T) {
	ctx := context.Background()
	addr := startBroker(t, 18832)
	msgs := subscribe(ctx, t, addr, "node/+")

	c, err := Dial(ctx, &Opts{Broker: addr, Topic: "node/7", ClientID: "node-7"})
	require.NoError(t, err)
	defer c.Close()
	b, err := transport.New(c, nil, nil)
	require.NoError(t, err)

	done := make(chan bool, 1)
	require.NoError(t, b.Broadcast([]byte("P2500 ERR"), 200, func(ok bool) { done <- ok }))
	assert.True(t, <-done)
	r := next(t, msgs)
	assert.Equal(t, "P2500 ERR", r.payload)
	assert.Equal(t, "200", r.seq)
}

func TestSendClosed(t *testing.T) {
	ctx := context.Background()
	addr := startBroker(t, 18833)
	c, err := Dial(ctx, &Opts{Broker: addr, Topic: "t"})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Error(t, c.Send(ctx, []byte("x"), 1))
	assert.NoError(t, c.Close())
}

func TestDialInvalid(t *testing.T) {
	ctx := context.Background()
	_, err := Dial(ctx, &Opts{Broker: "127.0.0.1:1", Topic: ""})
	assert.Error(t, err)
	_, err = Dial(ctx, &Opts{Broker: "127.0.0.1:1", Topic: "t", QoS: 2})
	assert.Error(t, err)
	_, err = Dial(ctx, &Opts{Broker: "127.0.0.1:1", Topic: "t"})
	assert.Error(t, err)
}
