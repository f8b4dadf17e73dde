// Package timeouts holds the timeout constants shared by the service
// runtimes, so the HTTP boundaries of every binary agree on how long
// to wait.
package timeouts

import "time"

// ReadHeader bounds how long an HTTP server waits for a client to send
// request headers before dropping the connection.
const ReadHeader = 5 * time.Second

// Shutdown bounds how long a server drains in-flight work during
// graceful shutdown before forcing connections closed.
const Shutdown = 5 * time.Second
