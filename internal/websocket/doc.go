// Package websocket streams calculation progress over gorilla/websocket.
//
// Each connection is a Session with a fixed protocol: the client sends one
// JSON request frame; the server sends zero or more "progress" frames and
// then exactly one "result" or "error" frame before closing.
package websocket
