// Package middleware groups the Fiber middleware of the HTTP bridge.
//
//   - rayid tags every request with an id, taken from the X-Ray-ID request
//     header when the host UI sends one, and echoes it in the response. Handlers
//     log through logger.WithRayID so one bridge call can be followed across
//     the sync and protocol logs.
//   - auth rejects requests whose X-API-Key header does not match the
//     configured key. An empty key turns the check off, which suits a bridge
//     bound to loopback.
//
// rayid is registered first, the swagger route before auth.
package middleware
