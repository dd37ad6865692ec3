// Package vcs is the version-control collaborator: it locates the project
// root, enumerates configuration files (via git where available, with a
// filesystem fallback), computes the repository fingerprint, and hashes
// module trees for version computation. The graph engine consumes it only
// through these boundaries.
package vcs
