// Package types defines the value objects shared by the plugdeploy
// components: package categories, manifests, the installation marker,
// customization classes, orchestrator states and the result records
// returned by FreshInstall, Upgrade and Rollback.
//
// Nothing in this package performs I/O. Every value is passed explicitly
// between components; there is no process-wide install state.
package types
