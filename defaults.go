package mudsmoke

import "time"

// All tuneable defaults live here so CLI flags, scenario files and the
// driver agree on them.
const (
	// DefaultHost and DefaultPort locate the MUD server under test.
	DefaultHost = "localhost"
	DefaultPort = 3000

	// DefaultConnectTimeout bounds how long Connect waits for the TCP
	// handshake.
	DefaultConnectTimeout = 2 * time.Second

	// DefaultReceiveTimeout bounds a single socket read. Hitting it is
	// normal and only means no bytes arrived in that window.
	DefaultReceiveTimeout = 2 * time.Second

	// DefaultPacingDelay is slept after every line sent, so the server
	// processes one line before the next arrives.
	DefaultPacingDelay = 300 * time.Millisecond

	// DefaultSettleDelay is slept after connecting and after entering the
	// world, giving the server time to start its banner or late notices.
	DefaultSettleDelay = 500 * time.Millisecond

	// DefaultCallTimeout is the ceiling for one ReceiveUntil call when the
	// caller passes no timeout.
	DefaultCallTimeout = 5 * time.Second

	// DefaultCommandTimeout is the ceiling used by SendCommand when it
	// waits for a pattern.
	DefaultCommandTimeout = 2 * time.Second

	// DefaultDrainDelay is slept before the single read SendCommand does
	// for output with no completion marker.
	DefaultDrainDelay = 500 * time.Millisecond

	// DefaultEnterTimeout bounds the wait for the "entered the world"
	// marker at the end of the login sequence.
	DefaultEnterTimeout = 3 * time.Second

	// DefaultScenarioPause separates scenarios, letting the server finish
	// tearing down the previous session.
	DefaultScenarioPause = 2 * time.Second

	// readBufferSize is the most bytes taken from the socket per read.
	readBufferSize = 4096
)
