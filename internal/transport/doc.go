// Package transport carries protocol frames to and from a KWL unit.
//
// The easyControls 3.0 web interface accepts WebSocket connections on port 80
// and answers every binary message with exactly one binary message. The unit
// handles one client at a time, so WebSocket opens a connection per exchange:
//
//	dial ws://<host>:80 -> send request -> receive response -> close
//
// Exchange applies one deadline to the whole sequence (DefaultTimeout unless
// configured). Failures are returned as *Error with a Kind naming the phase
// (KindDial, KindSend, KindReceive) or cause (KindTimeout, KindClosed).
//
// # Usage Example
//
//	ws := transport.NewWebSocket("192.168.1.50", transport.WithTimeout(5*time.Second))
//	resp, err := ws.Exchange(ctx, protocol.BuildReadRequest())
//	if transport.IsTimeout(err) {
//	    // unit did not answer in time
//	}
//
// # Thread Safety
//
// WebSocket holds no connection state and may be shared. Callers that need
// exchanges to be serialized (the unit drops concurrent clients) must do so
// themselves; kwl.Client does.
package transport
