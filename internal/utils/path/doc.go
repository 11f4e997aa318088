// Package pathutils expands user home shortcuts in configured directories.
package pathutils
