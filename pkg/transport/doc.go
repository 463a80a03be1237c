// Package transport provides the socket layer of the realtime client.
//
// A Dialer opens a Conn to a websocket endpoint. A Conn carries whole text
// messages: it supports one concurrent reader, one concurrent writer, and
// Close from any goroutine. The gorilla/websocket implementation is the
// production Dialer; Pipe and MockDialer provide in-memory connections for
// tests.
//
// Usage:
//
//	cfg := transport.DefaultConfig()
//	dialer := transport.NewWebSocketDialer(cfg)
//	url, _ := transport.BuildURL("wss://chat.example.com/ws", token, time.Now())
//	conn, err := dialer.Dial(ctx, url)
//	if err != nil {
//		return err
//	}
//	defer conn.Close(transport.CloseNormal, "bye")
//
//	err = transport.Pump(ctx, conn, func(msg []byte) {
//		// decode and dispatch
//	})
package transport
