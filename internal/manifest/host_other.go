//go:build !unix

package manifest

func fillUname(*host) {}
