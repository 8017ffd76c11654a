package api

import (
	"net/http"

	"github.com/loudcat/loudcat/internal/provider"
)

type providerStatus struct {
	Name        provider.ProviderName `json:"name"`
	DisplayName string                `json:"display_name"`
	Testable    bool                  `json:"testable"`
}

// handleListProviders returns the registered upstream catalogs.
func (r *Router) handleListProviders(w http.ResponseWriter, _ *http.Request) {
	statuses := []providerStatus{}
	for _, p := range r.providerRegistry.All() {
		_, testable := p.(provider.TestableProvider)
		statuses = append(statuses, providerStatus{
			Name:        p.Name(),
			DisplayName: p.Name().DisplayName(),
			Testable:    testable,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": statuses})
}

// handleTestProvider tests the connection to a provider.
func (r *Router) handleTestProvider(w http.ResponseWriter, req *http.Request) {
	name := provider.ProviderName(req.PathValue("name"))
	p := r.providerRegistry.Get(name)
	if p == nil {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	testable, ok := p.(provider.TestableProvider)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "provider does not support connection testing"})
		return
	}

	if err := testable.TestConnection(req.Context()); err != nil {
		r.logger.Warn("provider connection test failed", "provider", name, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
