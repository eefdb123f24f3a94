// Package repository provides read and push access to a project's local
// git repository for the sync engine.
//
// It opens the repository with go-git, resolves the default target (the
// commit the local HEAD considers canonical), walks the commit graph in
// descendant-to-ancestor order with an optional excluded ancestor set, and
// pushes force refspecs to the project's uplink remote.
//
// Push failures are classified so callers can tell transient network
// failures apart from fatal ones without matching on error text, see
// [RemoteError] and [IsNetwork].
//
// # Logging:
//
// package takes slog reference for logging and prints logs up to 'debug'
// level
package repository
