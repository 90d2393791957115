package llm

import (
	"net/http"
	"sync"
)

// Provider adapts one vendor's HTTP API. Implementations register
// themselves from init so that endpoint configs can name providers by
// string.
type Provider interface {
	// Name is the identifier endpoint configs use ("anthropic", "ollama").
	Name() string

	// BuildURL turns a configured base URL into the full endpoint URL.
	BuildURL(baseURL string) string

	// SetHeaders adds vendor auth and versioning headers.
	SetHeaders(req *http.Request)

	// BuildRequestBody marshals a request into the vendor's wire format.
	// A nil temperature means the vendor default.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse unmarshals the vendor's wire format into a Response.
	ParseResponse(body []byte, model string) (*Response, error)
}

var providers = struct {
	sync.RWMutex
	byName map[string]Provider
}{byName: make(map[string]Provider)}

// RegisterProvider makes p available under its Name. Later
// registrations with the same name win.
func RegisterProvider(p Provider) {
	providers.Lock()
	defer providers.Unlock()
	providers.byName[p.Name()] = p
}

// GetProvider returns the provider registered under name, or nil.
func GetProvider(name string) Provider {
	providers.RLock()
	defer providers.RUnlock()
	return providers.byName[name]
}

// ListProviders returns the names of all registered providers.
func ListProviders() []string {
	providers.RLock()
	defer providers.RUnlock()
	names := make([]string, 0, len(providers.byName))
	for name := range providers.byName {
		names = append(names, name)
	}
	return names
}
