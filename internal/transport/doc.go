// Package transport carries operation documents to the remote store.
//
// Client is the request/response channel: one document per HTTP POST, one
// decoded reply. Conn is the duplex channel: a websocket speaking the
// graphql-ws sub-protocol, used for subscriptions.
package transport
