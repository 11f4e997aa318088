package pathutils

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	tildeSymbolConstant      = "~"
	tildeSlashPrefixConstant = "~/"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// ExpandHome replaces a leading "~" or "~/" with the home directory reported by provider.
// Paths naming another user's home ("~name") are returned unchanged.
func ExpandHome(candidatePath string, provider HomeDirectoryProvider) (string, error) {
	trimmedPath := strings.TrimSpace(candidatePath)
	isHome := trimmedPath == tildeSymbolConstant
	isUnderHome := strings.HasPrefix(trimmedPath, tildeSlashPrefixConstant) || strings.HasPrefix(trimmedPath, tildeSymbolConstant+string(os.PathSeparator))
	if !isHome && !isUnderHome {
		return trimmedPath, nil
	}

	if provider == nil {
		provider = os.UserHomeDir
	}
	homeDirectory, homeError := provider()
	if homeError != nil {
		return "", homeError
	}
	if isHome {
		return homeDirectory, nil
	}
	return filepath.Join(homeDirectory, trimmedPath[len(tildeSlashPrefixConstant):]), nil
}
