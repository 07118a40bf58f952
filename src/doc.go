// Package zune is the core of a host-side bridge between a desktop and a
// legacy portable media player ("the device") connected over USB.
//
// It decodes the device's opaque metadata database (ZMDB) into a structured
// library, drives the MTP operation sequences the device expects when
// authoring new artists/albums/tracks, and — on devices that support it —
// runs a small single-threaded PPP/IPv4/TCP/HTTP stack so the device's own
// on-device browser can be served synthetic or proxied responses.
//
// The USB transport itself, raw MTP message framing, and the MTPZ crypto
// handshake are treated as external collaborators; see mtpsession.go for the
// Session contract this package expects from its caller.
package zune
