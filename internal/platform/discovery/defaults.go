// Package discovery holds the in-network addressing conventions for
// the service binaries, so cross-service URLs agree without per-host
// configuration.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceFeed is the live event feed HTTP service identity.
	ServiceFeed = "feed"
	// ServiceWorker is the background worker service identity.
	ServiceWorker = "worker"
)

// grpcPorts lists the health/gRPC listener per service.
var grpcPorts = map[string]int{
	ServiceWorker: 8089,
	ServiceFeed:   8091,
}

// httpPorts lists the client-facing HTTP listener per service.
var httpPorts = map[string]int{
	ServiceFeed: 8090,
}

// DefaultGRPCAddr returns the conventional host:port for a service's
// gRPC listener, or "" for services without one.
func DefaultGRPCAddr(service string) string {
	return conventionalAddr(service, grpcPorts)
}

// DefaultHTTPAddr returns the conventional host:port for a service's
// HTTP listener, or "" for services without one.
func DefaultHTTPAddr(service string) string {
	return conventionalAddr(service, httpPorts)
}

// OrDefaultWSURL returns value when set, falling back to the
// conventional ws://<service>:<port><path> endpoint.
func OrDefaultWSURL(value, service, path string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	addr := DefaultHTTPAddr(service)
	if addr == "" {
		return ""
	}
	return "ws://" + addr + path
}

func conventionalAddr(service string, ports map[string]int) string {
	service = strings.TrimSpace(service)
	port, ok := ports[service]
	if !ok || port <= 0 {
		return ""
	}
	return service + ":" + strconv.Itoa(port)
}
