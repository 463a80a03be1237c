package transport

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pump reads messages from conn and passes each one to handle until the
// connection fails or ctx is cancelled. It returns the read error that ended
// the pump, or nil when ctx was cancelled first. conn is closed on return.
func Pump(ctx context.Context, conn Conn, handle func([]byte)) error {
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			handle(data)
		}
	})

	// Closing the socket is the only way to unblock ReadMessage.
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-done:
		}
		_ = conn.Close(CloseGoingAway, "")
		return nil
	})

	return g.Wait()
}
