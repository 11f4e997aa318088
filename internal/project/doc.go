// Package project implements the host services a source relies on: project configuration,
// alias translation with mirrors, the download URL registry, warning reporting and fetch
// orchestration with retries.
package project
