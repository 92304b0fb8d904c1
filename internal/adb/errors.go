package adb

import "errors"

// Codec errors. Any of these is fatal to the owning transport session.
var (
	ErrShortHeader    = errors.New("adb: truncated packet header")
	ErrMagicMismatch  = errors.New("adb: magic does not match command")
	ErrLengthMismatch = errors.New("adb: payload length does not match header")
	ErrChecksumFailed = errors.New("adb: payload checksum mismatch")
	ErrPayloadTooBig  = errors.New("adb: payload exceeds maximum size")
)

// Transport-level errors. None of these tear down the session; they are
// logged and the offending packet is discarded.
var (
	ErrUnknownStream    = errors.New("adb: packet for unknown stream id")
	ErrStreamIDReused   = errors.New("adb: OPEN for an id that is already open")
	ErrUnsupportedSvc   = errors.New("adb: unsupported service")
	ErrTransportClosed  = errors.New("adb: transport session is closed")
)

// Sync sub-protocol errors. These are reported to the peer as a FAIL
// sub-message; the sync stream itself stays open.
var (
	ErrSyncNoActiveSend = errors.New("adb: DATA or DONE without an active SEND")
	ErrSyncMalformed    = errors.New("adb: malformed sync sub-message")
	ErrSyncPathNotFound = errors.New("adb: path not found")
)

// Host text protocol errors.
var (
	ErrHostBadLength  = errors.New("adb: invalid host request length header")
	ErrHostUnknownCmd = errors.New("adb: unsupported host command")
	ErrHostBadSerial  = errors.New("adb: serial does not match device")
)
