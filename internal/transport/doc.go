// Package transport builds the HTTP clients hyperscrape uses to reach the
// network: one-shot seed fetches and the remote drive daemon.
//
// Connections are direct by default. A SOCKS5 proxy address routes every
// connection through that proxy, and EmbeddedTor starts a private Tor daemon
// to serve as one.
package transport
