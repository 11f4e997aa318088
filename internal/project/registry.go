package project

import "sync"

// DownloadURL is one URL a source downloads from.
type DownloadURL struct {
	URL     string
	Primary bool
}

// DownloadURLRegistry records marked URLs in first-marked order.
type DownloadURLRegistry struct {
	mutex   sync.Mutex
	indexes map[string]int
	urls    []DownloadURL
}

// NewDownloadURLRegistry constructs an empty registry.
func NewDownloadURLRegistry() *DownloadURLRegistry {
	return &DownloadURLRegistry{indexes: map[string]int{}}
}

// Mark records url. A URL marked primary once stays primary.
func (registry *DownloadURLRegistry) Mark(url string, primary bool) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	if index, found := registry.indexes[url]; found {
		registry.urls[index].Primary = registry.urls[index].Primary || primary
		return
	}
	registry.indexes[url] = len(registry.urls)
	registry.urls = append(registry.urls, DownloadURL{URL: url, Primary: primary})
}

// URLs returns a copy of the recorded URLs.
func (registry *DownloadURLRegistry) URLs() []DownloadURL {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	return append([]DownloadURL(nil), registry.urls...)
}
