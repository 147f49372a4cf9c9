// SPDX-FileCopyrightText: 2026 ttalk-go contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package messenger

import "syscall"

// listenControl keeps the operating system's default socket options.
func listenControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
