// Package tlsroots builds the TLS configuration of the HTTP transport:
// system roots plus operator-supplied CAs, and an optional client
// certificate that is reloaded when its files change.
package tlsroots
