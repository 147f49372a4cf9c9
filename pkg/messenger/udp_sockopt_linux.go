// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package messenger

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// socketBufferSize is applied to both SO_RCVBUF and SO_SNDBUF. Bursts of
// retransmissions should rather queue in the kernel than being dropped.
const socketBufferSize int = 1 << 20

// listenControl is the net.ListenConfig's Control function to set the socket options.
func listenControl(_, _ string, rawConn syscall.RawConn) (err error) {
	opts := map[int]int{
		unix.SO_RCVBUF: socketBufferSize,
		unix.SO_SNDBUF: socketBufferSize,
	}

	ctrlErr := rawConn.Control(func(fd uintptr) {
		for opt, value := range opts {
			err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, opt, value)
			if err != nil {
				return
			}
		}
	})
	if ctrlErr != nil {
		err = ctrlErr
	}

	return
}
