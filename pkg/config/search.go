package config

import (
	"os"

	"paperwright/pkg/logx"
)

// Search provider environment variable names.
// Add new providers here as they're supported.
const (
	// EnvGoogleSearchAPIKey is the environment variable for Google Custom Search API key.
	EnvGoogleSearchAPIKey = "GOOGLE_SEARCH_API_KEY"
	// EnvGoogleSearchCX is the environment variable for Google Custom Search Engine ID.
	EnvGoogleSearchCX = "GOOGLE_SEARCH_CX"
)

// SearchProviderType identifies which search provider is available.
type SearchProviderType string

// Search provider type constants.
const (
	SearchProviderNone   SearchProviderType = ""
	SearchProviderGoogle SearchProviderType = "google"
)

// SearchAPIStatus contains information about available search APIs.
type SearchAPIStatus struct {
	Available    bool               // Whether any search API is available
	Provider     SearchProviderType // Which provider is available (empty if none)
	GoogleAPIKey string             // Google API key (if available)
	GoogleCX     string             // Google Custom Search Engine ID (if available)
}

// DetectSearchAPIs checks environment variables and returns status of available search APIs.
// This function is idempotent and can be called multiple times.
func DetectSearchAPIs() SearchAPIStatus {
	status := SearchAPIStatus{}

	// Check Google Custom Search (highest priority)
	googleAPIKey := os.Getenv(EnvGoogleSearchAPIKey)
	googleCX := os.Getenv(EnvGoogleSearchCX)
	if googleAPIKey != "" && googleCX != "" {
		status.Available = true
		status.Provider = SearchProviderGoogle
		status.GoogleAPIKey = googleAPIKey
		status.GoogleCX = googleCX
		return status
	}

	// Future: check other providers here in priority order

	return status
}

// IsSearchEnabled determines if the web search and research lookup tools
// should be offered to the authoring agent.
// Returns true if search APIs are available; a missing key set downgrades the
// run to offline authoring with a warning rather than failing it.
func IsSearchEnabled() bool {
	status := DetectSearchAPIs()
	if !status.Available {
		logx.NewLogger("config").Warn("Web search disabled: no search API keys found. Set %s and %s to enable.",
			EnvGoogleSearchAPIKey, EnvGoogleSearchCX)
	}
	return status.Available
}

// GetSearchProvider returns the detected search provider type.
// Returns SearchProviderNone if no provider is available.
func GetSearchProvider() SearchProviderType {
	return DetectSearchAPIs().Provider
}
