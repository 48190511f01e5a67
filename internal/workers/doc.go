/*
Package workers provides utilities for determining optimal worker pool sizes
in containerized environments.

When running in containers, the number of available CPUs may be limited by
cgroup constraints. While Go 1.19+ automatically sets GOMAXPROCS based on
container CPU limits, runtime.NumCPU() still returns the host machine's CPU
count. This package uses GOMAXPROCS to size worker pools so the scanner and
metadata resolution respect container resource limits.

Basic usage:

	// For I/O-bound tasks (directory walks, sidecar reads)
	// Uses 2 workers per available CPU
	numWorkers := workers.ForIO(16) // max 16 workers

	// For CPU-intensive tasks
	numWorkers := workers.ForCPU(8) // max 8 workers

All functions respect the SCANNER_WORKERS environment variable, allowing
operators to override the automatic calculation:

	env:
	- name: SCANNER_WORKERS
	  value: "4"

All functions in this package are safe for concurrent use.
*/
package workers
