// Package id generates compact URL-safe identifiers.
//
// Each identifier is built from UUIDv4 random bytes and rendered as
// unpadded base32 (RFC 4648), giving a 26-character lowercase string
// that is safe in URLs, file paths, and log lines.
package id
