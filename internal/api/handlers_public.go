package api

import (
	"net/http"

	"github.com/gorilla/mux"

	internalerrors "github.com/eth-reserves/internal/errors"
	"github.com/eth-reserves/internal/types"
)

// parseDayParam reads an optional YYYY-MM-DD query parameter
func parseDayParam(r *http.Request, name string) (types.SnapshotDay, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return types.SnapshotDay{}, nil
	}
	day, err := types.ParseSnapshotDay(raw)
	if err != nil {
		return types.SnapshotDay{}, internalerrors.NewInvalidParameterError(name, "must be a date formatted YYYY-MM-DD")
	}
	return day, nil
}

func parseDayRange(r *http.Request) (types.SnapshotDay, types.SnapshotDay, error) {
	from, err := parseDayParam(r, "from")
	if err != nil {
		return from, from, err
	}
	to, err := parseDayParam(r, "to")
	return from, to, err
}

// handleLatestSnapshot handles GET /api/snapshots/latest
func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.services.Snapshots.Latest(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// handleListSnapshots handles GET /api/snapshots?from&to
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDayRange(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	snapshots, err := s.services.Snapshots.ListSnapshots(r.Context(), from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// handleSnapshotSeries handles GET /api/snapshots/series?from&to
func (s *Server) handleSnapshotSeries(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDayRange(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	points, err := s.services.Snapshots.Series(r.Context(), from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"points": points,
		"count":  len(points),
	})
}

// handleListPublicCompanies handles GET /api/companies
func (s *Server) handleListPublicCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.services.Snapshots.ListPublicCompanies(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"companies": companies,
		"count":     len(companies),
	})
}

// handleGetPublicCompany handles GET /api/companies/{id}
func (s *Server) handleGetPublicCompany(w http.ResponseWriter, r *http.Request) {
	company, err := s.services.Companies.GetPublicCompany(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, company)
}

// handleCompanyHistory handles GET /api/companies/{id}/snapshots?from&to
func (s *Server) handleCompanyHistory(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDayRange(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	history, err := s.services.Snapshots.CompanyHistory(r.Context(), mux.Vars(r)["id"], from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": history,
		"count":     len(history),
	})
}

// handleListInfluencers handles GET /api/influencers
func (s *Server) handleListInfluencers(w http.ResponseWriter, r *http.Request) {
	influencers, err := s.services.Influencers.ListInfluencers(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"influencers": influencers,
		"count":       len(influencers),
	})
}
