// Copyright 2026 The Fixpoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fixpoint/fixpoint/internal/tenant"
)

// ProvisionTenantRequest represents the tenant provisioning payload
type ProvisionTenantRequest struct {
	ShortName string `json:"short_name" binding:"required" example:"acme"`
	Name      string `json:"name" binding:"required" example:"ACME Property Management"`
	TaxID     string `json:"tax_id" binding:"required" example:"PL1234567890"`
	Country   string `json:"country" example:"PL"`
	City      string `json:"city" example:"Warszawa"`
}

// ProvisionTenant creates a new tenant partition
// @Summary Provision Tenant
// @Description Allocate a tenant_id, create and migrate the partition, register the tenant. All-or-nothing.
// @Tags Tenants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProvisionTenantRequest true "Tenant Data"
// @Success 201 {object} tenant.Tenant
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tenants [post]
func (h *Handler) ProvisionTenant(w http.ResponseWriter, r *http.Request) {
	var req ProvisionTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.provisioner.Provision(r.Context(), req.ShortName, tenant.Metadata{
		Name:    req.Name,
		TaxID:   req.TaxID,
		Country: req.Country,
		City:    req.City,
	})
	if err != nil {
		if errors.Is(err, tenant.ErrDuplicateTaxID) {
			respondError(w, http.StatusConflict, "tenant with this tax id already exists")
			return
		}
		if errors.Is(err, tenant.ErrProvisioningFailed) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondDomainError(w, r, err)
		return
	}

	h.meter.ProvisionedCount.Add(r.Context(), 1)

	respondJSON(w, http.StatusCreated, t)
}

// ListTenants lists registered tenants
// @Summary List Tenants
// @Tags Tenants
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {array} tenant.Tenant
// @Router /tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	tenants, err := h.tenantService.ListTenants(r.Context(), limit, offset)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []*tenant.Tenant{}
	}
	respondJSON(w, http.StatusOK, tenants)
}

// GetTenant retrieves one tenant
// @Summary Get Tenant
// @Tags Tenants
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID} [get]
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenantService.GetTenant(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// UpdateTenantRequest represents administrative tenant edits
type UpdateTenantRequest struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	TaxID     string `json:"tax_id"`
	Country   string `json:"country"`
	City      string `json:"city"`
}

// UpdateTenant applies administrative edits to a tenant record
// @Summary Update Tenant
// @Description Edit registry attributes. The tenant_id and its schema never change.
// @Tags Tenants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param request body UpdateTenantRequest true "Tenant Data"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /tenants/{tenantID} [put]
func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	var req UpdateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.tenantService.GetTenant(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	if req.Name != "" {
		t.Name = req.Name
	}
	if req.ShortName != "" {
		t.ShortName = req.ShortName
	}
	if req.TaxID != "" {
		t.TaxID = req.TaxID
	}
	if req.Country != "" {
		t.Country = req.Country
	}
	if req.City != "" {
		t.City = req.City
	}

	if err := h.tenantService.UpdateTenant(r.Context(), t); err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// TeardownTenant removes a tenant and drops its partition
// @Summary Teardown Tenant
// @Description Soft-delete the registry row and drop the partition schema with all its data
// @Tags Tenants
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenants/{tenantID} [delete]
func (h *Handler) TeardownTenant(w http.ResponseWriter, r *http.Request) {
	if err := h.tenantService.Teardown(r.Context(), chi.URLParam(r, "tenantID")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "tenant removed"})
}

// CreateUserRequest represents a user directory entry
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required" example:"user@example.com"`
	FullName string `json:"full_name" example:"Jan Kowalski"`
	Phone    string `json:"phone" example:"+48123456789"`
	TenantID string `json:"tenant_id" example:"acme_3f2a9b01c4d2"`
}

// CreateUser adds an entry to the cross-tenant user directory
// @Summary Create User
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User Data"
// @Success 201 {object} tenant.User
// @Failure 400 {object} map[string]string
// @Router /users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	u, err := h.tenantService.CreateUser(r.Context(), req.Email, req.FullName, req.Phone, req.TenantID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, u)
}

// ListUsers lists directory entries
// @Summary List Users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {array} tenant.User
// @Router /users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	users, err := h.tenantService.ListUsers(r.Context(), limit, offset)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if users == nil {
		users = []*tenant.User{}
	}
	respondJSON(w, http.StatusOK, users)
}

// GetUserByEmail looks a user up in the directory
// @Summary Get User By Email
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param email path string true "Email"
// @Success 200 {object} tenant.User
// @Failure 404 {object} map[string]string
// @Router /users/{email} [get]
func (h *Handler) GetUserByEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.tenantService.GetUserByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}
