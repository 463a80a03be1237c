// Package realtime is a reliable realtime messaging client for chat
// backends that speak JSON frames over websockets.
//
// The client keeps one connection open and recovers from failures on its
// own. Frames sent while offline wait in a bounded priority buffer and are
// flushed in order once the connection is back. Frames may require an
// acknowledgment from the server, in which case their Delivery completes
// when the ack arrives or its timeout fires. A ping/pong heartbeat detects
// half-open links, and lost connections are retried with exponential
// backoff and jitter until the attempt budget runs out.
//
// # Connecting
//
//	cfg := realtime.DefaultConfig()
//	cfg.Endpoint = "wss://chat.example.com/ws"
//	cfg.Token = token
//
//	c, err := realtime.NewClient(cfg, realtime.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if err := c.Connect(); err != nil {
//	    return err
//	}
//
// # Sending
//
//	d, err := c.SendWithAck("chat:message", msg, realtime.WithPriority(realtime.PriorityHigh))
//	if err != nil {
//	    return err
//	}
//	if err := d.Wait(ctx); err != nil {
//	    // ack timeout, expiry, eviction or client closed
//	}
//
// # Receiving
//
//	realtime.Handle(c, "chat:message", func(m ChatMessage, f realtime.Frame) {
//	    fmt.Println(m.Text)
//	})
//
// The sub-packages under pkg hold the implementation. This package
// re-exports the parts most applications need.
package realtime
