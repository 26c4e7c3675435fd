//go:build unix

package manifest

import "golang.org/x/sys/unix"

func fillUname(h *host) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return
	}
	h.system = unix.ByteSliceToString(u.Sysname[:])
	h.release = unix.ByteSliceToString(u.Release[:])
	h.machine = unix.ByteSliceToString(u.Machine[:])
	if node := unix.ByteSliceToString(u.Nodename[:]); h.node == "" {
		h.node = node
	}
}
