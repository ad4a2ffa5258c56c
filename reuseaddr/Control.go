// Package reuseaddr provides a net.ListenConfig.Control callback that sets
// SO_REUSEADDR on the listening socket, matching the original C
// implementation's init_incoming_socket (see original_source/main.c),
// which sets the same option so a restarted node can immediately rebind
// port 51511 instead of waiting out the TIME_WAIT interval of a previous
// instance's socket.
package reuseaddr

import "syscall"

// Control is passed as net.ListenConfig.Control when binding the gossip
// listener. network and address are unused; only the raw connection's fd
// is needed to set the socket option.
func Control(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = setReuseAddr(fd)
	})
	if err != nil {
		return err
	}
	return sockErr
}
