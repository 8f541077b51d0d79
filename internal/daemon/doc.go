// Package daemon provides the main orchestration for livenotifyd.
// It wires the freedesktop host, the template registry, the composer,
// the interaction bridge and the embedding API service together, and
// hot-reloads configuration and templates.
package daemon
