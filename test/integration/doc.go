// Package integration runs a real agent against the local host. Samples come
// from gopsutil, stress jobs are shell scripts and the fifo is a real named
// pipe, so these tests need a Linux host with /bin/sh.
package integration
