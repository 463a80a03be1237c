// Package client keeps a websocket connection to a realtime chat backend
// alive and delivers application frames over it.
//
// A Client moves through five states: disconnected, connecting, connected,
// reconnecting and error. Lost connections are retried with exponential
// backoff until Config.Reconnect.MaxAttempts is reached; a heartbeat closes
// sockets whose pongs stop arriving.
//
// # Sending
//
// Frames sent while the socket is down wait in a bounded outbound buffer and
// are flushed in priority order (high, normal, low) once it reconnects:
//
//	c, err := client.New(cfg, client.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	if err := c.Connect(); err != nil {
//	    return err
//	}
//
//	d, err := c.SendWithAck("chat:message", msg, client.WithPriority(protocol.PriorityHigh))
//	if err != nil {
//	    return err
//	}
//	if err := d.Wait(ctx); err != nil {
//	    log.Printf("not acknowledged: %v", err)
//	}
//
// # Receiving
//
// Inbound frames are published on Events().Message and on a topic per event
// name. Handle decodes the payload for you:
//
//	client.Handle(c, "chat:message", func(m ChatMessage, f protocol.Frame) {
//	    fmt.Println(m.Text)
//	})
//
// Callbacks run one at a time on a dispatcher goroutine, in the order the
// client produced them. They may call any Client method, including Close.
package client
