// Package kwl is the client for one Helios KWL unit with an easyControls 3.0
// web interface.
//
// A Client combines the protocol codec, the WebSocket transport and the
// session policy:
//
//	client := kwl.New("192.168.1.50")
//	if err := client.Refresh(ctx); err != nil {
//	    return err // the status dump could not be decoded
//	}
//	snap, ok, available := client.State()
//
// Refresh only contacts the unit when the cached snapshot is older than
// session.MinReadInterval or a command has been sent since the last read.
// Unreachable units are not an error: Refresh keeps the last snapshot and
// Available turns false once reads have failed for session.OfflineThreshold.
//
// Commands (SwitchMode, SetFanSpeed, SetIntensiveDuration, SetPower) validate
// and build their frame before anything is sent, so mode errors never reach the
// unit. A command whose acknowledgement does not match the expected frame is
// logged and still reported as successful; the unit gives no stronger
// guarantee.
package kwl
