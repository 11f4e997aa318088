// Package cli constructs the tagmirror command-line interface: the Cobra root command with its
// persistent configuration and logging flags, and the source subcommands operating on source documents.
package cli
