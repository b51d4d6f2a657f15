// Package api serves KWL state and commands over HTTP.
//
// Routes:
//
//	GET /version
//	GET /devices
//	GET /state
//	PUT /mode/:mode[?duration=minutes]
//	PUT /fan/:mode/:percent
//	PUT /intensive-duration/:minutes
//	PUT /power/:state
//
// Every route except /version and /devices is also available below
// /devices/:device for a configured unit other than the default.
//
// Commands answer with the state read back from the unit. Invalid parameters
// and unsupported modes give 400, an unknown device 404, a unit that has not
// been read yet 503, and any failure talking to the unit 502.
package api
