package manifest

import (
	"os"
	"runtime"
	"strings"
)

type host struct {
	node    string
	system  string
	release string
	machine string
}

func currentHost() host {
	h := host{system: runtime.GOOS, machine: runtime.GOARCH}
	if name, err := os.Hostname(); err == nil {
		h.node = name
	}
	fillUname(&h)
	return h
}

// platformString renders e.g. "linux-6.1.0-x86_64".
func platformString(h host) string {
	parts := []string{h.system}
	if h.release != "" {
		parts = append(parts, h.release)
	}
	return strings.Join(append(parts, h.machine), "-")
}
