// Package filesystem provides the filesystem abstraction used by plugdeploy.
//
// This package contains the FS interface every component performs I/O
// through, the OS implementation and a fault-injecting wrapper for tests.
package filesystem
