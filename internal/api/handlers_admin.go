package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/eth-reserves/internal/service"
	"github.com/eth-reserves/internal/types"
)

// handleLogin handles POST /api/admin/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds service.Credentials
	if err := parseJSONBody(r, &creds); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.services.Admins.Login(r.Context(), creds)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleRunSnapshot handles POST /api/admin/snapshots/run?date=YYYY-MM-DD
func (s *Server) handleRunSnapshot(w http.ResponseWriter, r *http.Request) {
	day, err := parseDayParam(r, "date")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	// a client disconnect must not abort a run halfway through its writes
	result, err := s.services.Runner.Run(context.WithoutCancel(r.Context()), day)
	if err != nil {
		statusCode, code, message, details := mapServiceError(err)
		if result != nil {
			details = map[string]interface{}{
				"date":      result.Day,
				"companies": len(result.Companies),
				"failures":  result.Failures,
			}
		}
		respondServiceErrorWithDetails(w, r, err, statusCode, code, message, details)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleRecordPurchase handles POST /api/admin/purchases
func (s *Server) handleRecordPurchase(w http.ResponseWriter, r *http.Request) {
	var input service.PurchaseInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := s.services.Purchases.RecordPurchase(r.Context(), input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// handleListPurchases handles GET /api/admin/companies/{id}/purchases
func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := s.services.Purchases.ListPurchases(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"purchases": purchases,
		"count":     len(purchases),
	})
}

// handleAdminListCompanies handles GET /api/admin/companies?status=
func (s *Server) handleAdminListCompanies(w http.ResponseWriter, r *http.Request) {
	status := types.CompanyStatus(r.URL.Query().Get("status"))
	companies, err := s.services.Companies.ListCompanies(r.Context(), status)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"companies": companies,
		"count":     len(companies),
	})
}

// handleAdminGetCompany handles GET /api/admin/companies/{id}
func (s *Server) handleAdminGetCompany(w http.ResponseWriter, r *http.Request) {
	company, err := s.services.Companies.GetCompany(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, company)
}

// handleCreateCompany handles POST /api/admin/companies
func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var input service.CompanyInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	company, err := s.services.Companies.CreateCompany(r.Context(), input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, company)
}

// handleUpdateCompany handles PUT /api/admin/companies/{id}
func (s *Server) handleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	var input service.CompanyInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	company, err := s.services.Companies.UpdateCompany(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, company)
}

// handleSetCompanyStatus handles PUT /api/admin/companies/{id}/status
func (s *Server) handleSetCompanyStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status types.CompanyStatus `json:"status"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	company, err := s.services.Companies.SetStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, company)
}

// handleSetCompanyReserve handles PUT /api/admin/companies/{id}/reserve
func (s *Server) handleSetCompanyReserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentReserve decimal.Decimal `json:"currentReserve"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	company, err := s.services.Companies.SetReserve(r.Context(), mux.Vars(r)["id"], req.CurrentReserve)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, company)
}

// handleListWallets handles GET /api/admin/companies/{id}/wallets
func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.services.Wallets.ListWallets(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"wallets": wallets,
		"count":   len(wallets),
	})
}

// handleAddWallet handles POST /api/admin/companies/{id}/wallets
func (s *Server) handleAddWallet(w http.ResponseWriter, r *http.Request) {
	var input service.WalletInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	wallet, err := s.services.Wallets.AddWallet(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, wallet)
}

// handleRemoveWallet handles DELETE /api/admin/companies/{id}/wallets/{walletId}
func (s *Server) handleRemoveWallet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.services.Wallets.RemoveWallet(r.Context(), vars["id"], vars["walletId"]); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefreshCompanyWallets handles POST /api/admin/companies/{id}/wallets/refresh
func (s *Server) handleRefreshCompanyWallets(w http.ResponseWriter, r *http.Request) {
	summary, err := s.services.Wallets.RefreshCompany(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleRefreshAllWallets handles POST /api/admin/wallets/refresh
func (s *Server) handleRefreshAllWallets(w http.ResponseWriter, r *http.Request) {
	summary, err := s.services.Wallets.RefreshAll(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleCreateInfluencer handles POST /api/admin/influencers
func (s *Server) handleCreateInfluencer(w http.ResponseWriter, r *http.Request) {
	var input service.InfluencerInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	influencer, err := s.services.Influencers.CreateInfluencer(r.Context(), input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, influencer)
}

// handleDeleteInfluencer handles DELETE /api/admin/influencers/{id}
func (s *Server) handleDeleteInfluencer(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Influencers.DeleteInfluencer(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
