// Package gitmirror manages local bare mirrors of remote git repositories.
//
// A Mirror clones its remote once into a deterministic directory, fetches on demand,
// resolves tracked branches and tags to refs, enumerates submodules pinned at a ref and
// stages checkouts. Concurrent processes may race to create the same mirror; the clone is
// renamed into place and the loser discards its copy.
package gitmirror
