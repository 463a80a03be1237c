package client

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/transport"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/utils"
)

func TestCloseLeavesNoGoroutines(t *testing.T) {
	utils.VerifyNoLeaks(t, func() {
		clock := clockwork.NewFakeClock()
		dialer := transport.NewMockDialer()
		server := dialer.QueuePipe()

		c, err := New(testConfig(), WithClock(clock), WithDialer(dialer), WithRandom(fixedRand(0.5)))
		require.NoError(t, err)

		connected := collect(&c.Events().Connected)
		require.NoError(t, c.Connect())
		recv(t, connected)

		_, err = c.SendWithAck("chat:message", nil)
		require.NoError(t, err)
		readFrame(t, server)

		require.NoError(t, c.Close())
	})
}

func TestReconnectCycleLeavesNoGoroutines(t *testing.T) {
	utils.VerifyNoLeaks(t, func() {
		clock := clockwork.NewFakeClock()
		dialer := transport.NewMockDialer()

		c, err := New(testConfig(), WithClock(clock), WithDialer(dialer), WithRandom(fixedRand(0.5)))
		require.NoError(t, err)

		connected := collect(&c.Events().Connected)
		disconnects := collect(&c.Events().Disconnected)
		for i := 0; i < 5; i++ {
			server := dialer.QueuePipe()
			if i == 0 {
				require.NoError(t, c.Connect())
			} else {
				clock.Advance(100 * time.Millisecond)
			}
			recv(t, connected)
			require.NoError(t, server.Close(transport.CloseGoingAway, "bye"))
			recv(t, disconnects)
		}

		require.NoError(t, c.Close())
	})
}
