/*
scenarios.go - Demo scenario endpoints

PURPOSE:
  Lists and loads the pre-built libraries in factory.Scenarios. Loading
  resets the library first, then applies the scenario seed through the
  engine, so every scenario obeys the same lending rules as live traffic.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "busy-branch"}

NOTE:
  Loading and resetting wipe the library. Only use in development/demo
  environments.

SEE ALSO:
  - factory/scenarios.go: Scenario definitions
  - factory/seed.go:      Seed application
*/
package api

import (
	"log/slog"
	"net/http"

	"github.com/warp/lending-engine/factory"
	"github.com/warp/lending-engine/log"
)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, 0, len(factory.Scenarios))
	for _, s := range factory.Scenarios {
		dtos = append(dtos, ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the last loaded scenario, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	id := h.currentScenario
	h.mu.Unlock()

	s, ok := factory.FindScenario(id)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description})
}

// LoadScenario resets the library and applies a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := factory.FindScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Engine.Reset(ctx, h.State); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := factory.Apply(ctx, h.Engine, h.State, s.Seed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	h.currentScenario = s.ID
	log.Info(ctx, "scenario loaded", slog.String("scenario", s.ID), slog.Int("skipped", len(res.Skipped)))
	writeJSON(w, http.StatusOK, LoadScenarioResponse{ScenarioID: s.ID, Result: res})
}

// ResetLibrary empties the library.
func (h *Handler) ResetLibrary(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Engine.Reset(r.Context(), h.State); err != nil {
		writeDomainError(w, err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
