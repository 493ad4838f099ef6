// Package nightscout provides a Nightscout REST client for uploading glucose entries.
//
// Endpoints used:
//   - POST /api/v1/entries: upload sgv entries
//   - GET /api/v1/status.json: server reachability
//
// Requests are authenticated with the SHA1 hashed API secret (see internal/auth).
package nightscout
