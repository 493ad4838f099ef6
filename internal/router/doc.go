// Package router turns raw intake frames into payloads.
//
// The Router:
//   - Reads RawMessages from the websocket feed
//   - Accepts a single JSON object or a bounded array of objects per frame
//   - Keeps numbers as json.Number so the decoder sees exact values
//   - Counts parse errors instead of failing the feed
package router
