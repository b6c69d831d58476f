// Package paths provides centralized path handling for plugdeploy.
//
// It owns two concerns:
//
//   - The path validator: ValidatePath resolves a path against an allowed
//     root and rejects anything that escapes it, including symlinks that
//     point outside. Every read or write inside a target tree goes through
//     it first.
//   - The target layout: where the installation marker, the lock sentinel
//     and the backup snapshots live inside a target tree, plus the XDG
//     directories used for configuration and audit state.
package paths
