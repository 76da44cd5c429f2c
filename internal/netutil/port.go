// Package netutil picks a listen address for the chart server.
package netutil

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoBindAddr is returned when neither the preferred address nor any candidate is free.
var ErrNoBindAddr = errors.New("no available bind addresses")

// SelectBindAddr returns preferred when it can be listened on. Otherwise, with
// autoFallback set, it returns the first free candidate. Duplicates are tried once.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	tried := make(map[string]bool, len(candidates)+1)
	if preferred != "" {
		tried[preferred] = true
		ok, err := IsAddrAvailable(preferred)
		if err != nil {
			return "", err
		}
		if ok {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
	}

	for _, addr := range candidates {
		if tried[addr] {
			continue
		}
		tried[addr] = true
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if ok {
			return addr, nil
		}
	}

	return "", ErrNoBindAddr
}

// IsAddrAvailable returns true when an address can be listened on.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
