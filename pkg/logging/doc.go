// Package logging provides the structured logging facility used across
// garden. It wraps log/slog with a subsystem tag and printf-style call
// sites so components can log without carrying a logger instance around.
//
// Call InitForCLI once at startup; before that, log calls are suppressed.
package logging
