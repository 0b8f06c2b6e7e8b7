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
	"context"

	"github.com/fixpoint/fixpoint/internal/issue"
	"github.com/fixpoint/fixpoint/internal/tenant"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	tenantKey contextKey = "tenant"
	storeKey  contextKey = "store"
)

// GetUserID retrieves the authenticated user UUID from context.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}

// GetTenant retrieves the resolved tenant from context. Nil outside
// tenant-scoped routes.
func GetTenant(ctx context.Context) *tenant.Tenant {
	if val, ok := ctx.Value(tenantKey).(*tenant.Tenant); ok {
		return val
	}
	return nil
}

// GetStore retrieves the partition-bound issue store from context.
// Everything a tenant-scoped handler touches goes through this handle,
// so no handler can reach outside the resolved partition.
func GetStore(ctx context.Context) issue.Store {
	if val, ok := ctx.Value(storeKey).(issue.Store); ok {
		return val
	}
	return nil
}
