// Package server is a small websocket backend for developing against and
// testing the realtime client.
//
// It speaks the same frame protocol as the client:
//
//   - ping frames are answered with a pong echoing the payload, unless pongs
//     are disabled to simulate a half-open link
//   - application frames carrying a messageId are acknowledged with a
//     message:ack frame of status delivered
//   - application frames are relayed verbatim to every other session
//   - frames that do not parse are answered with an error frame
//
// Connections must present a token in the token query parameter or an
// Authorization bearer header. Tokens come from Config.Tokens, from POST
// /token, or from any validator passed with WithValidator.
//
//	srv, err := server.New(server.DefaultConfig(), server.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
//	return srv.ListenAndServe(ctx)
//
// The server also exposes GET /healthz and Prometheus metrics on /metrics.
package server
