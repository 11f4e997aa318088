// Package filesystem provides the operating system backed filesystem used by mirrors and source documents.
package filesystem
