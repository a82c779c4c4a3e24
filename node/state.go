// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package node

import "fmt"

// State is the Sequencer state.
type State int

const (
	Idle State = iota
	// Running powers the bridge and starts the first conversion. It is left
	// within the same HandleEvent call.
	Running
	AwaitingReference
	AwaitingSensor
	AwaitingSupply
	AwaitingTransmit
	// PreparingSleep is terminal. Entering it triggers the sleep once.
	PreparingSleep
)

var stateNames = [...]string{
	Idle:              "Idle",
	Running:           "Running",
	AwaitingReference: "AwaitingConversion(reference)",
	AwaitingSensor:    "AwaitingConversion(sensor)",
	AwaitingSupply:    "AwaitingConversion(supply)",
	AwaitingTransmit:  "AwaitingTransmit",
	PreparingSleep:    "PreparingSleep",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Role returns the conversion an AwaitingConversion state waits for.
func (s State) Role() (Role, bool) {
	switch s {
	case AwaitingReference, AwaitingSensor, AwaitingSupply:
		return Role(s - AwaitingReference), true
	}
	return 0, false
}

func awaiting(r Role) State {
	return AwaitingReference + State(r)
}

// EventKind identifies an external event.
type EventKind int

const (
	// EventStart begins a cycle.
	EventStart EventKind = iota
	// EventPoll asks whether the outstanding conversion is ready.
	EventPoll
	// EventTransmitDone reports the end of a broadcast.
	EventTransmitDone
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventPoll:
		return "poll"
	case EventTransmitDone:
		return "transmit-done"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is delivered to HandleEvent.
type Event struct {
	Kind EventKind
	// LocalID and OK are set for EventTransmitDone.
	LocalID uint8
	OK      bool
}
