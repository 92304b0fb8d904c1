package adb

import (
	"io"
	"net"
	"strings"
)

// spawnForwarder starts a listener for a "tcp:<port>" local spec that
// pipes each accepted connection bidirectionally to remote, per the
// port-forwarder model in the concurrency design: each forwarded
// connection gets two goroutines piping bytes in opposite directions,
// and closing either side releases both. Non-tcp local specs (device-side
// abstract sockets, jdwp, etc.) have no host-reachable listener to open
// and are silently skipped — the forward rule is still recorded by the
// backend for list-forward/forward-remove bookkeeping.
func spawnForwarder(local, remote string, logger Logger) {
	port, ok := tcpPort(local)
	if !ok {
		return
	}
	remotePort, ok := tcpPort(remote)
	if !ok {
		return
	}

	ln, err := net.Listen("tcp", "127.0.0.1:"+port)
	if err != nil {
		logger.Warn().Err(err).Str("local", local).Msg("forward: failed to bind local listener")
		return
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go pipeForward(conn, "127.0.0.1:"+remotePort, logger)
		}
	}()
}

func tcpPort(spec string) (string, bool) {
	port, ok := strings.CutPrefix(spec, "tcp:")
	if !ok {
		return "", false
	}
	return port, true
}

// pipeForward dials remote and copies bytes in both directions until
// either side closes, then closes both.
func pipeForward(local net.Conn, remote string, logger Logger) {
	defer local.Close()

	remoteConn, err := net.Dial("tcp", remote)
	if err != nil {
		logger.Warn().Err(err).Str("remote", remote).Msg("forward: failed to dial remote")
		return
	}
	defer remoteConn.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remoteConn, local)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remoteConn)
		done <- struct{}{}
	}()
	<-done
}
