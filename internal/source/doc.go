// Package source implements a git source: a repository pinned to a tag or commit, described by a
// YAML document, mirrored locally together with its submodules and staged on demand.
//
// The Source type carries the lifecycle a host drives (configure, track, fetch, stage), while
// CommandBuilder exposes the same lifecycle as Cobra commands operating on a source document.
package source
