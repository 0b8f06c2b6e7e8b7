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

package tenant

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Resolver maps a tenant token (the tenant_id carried in the tenant
// header) to a registry record. Results are cached with a bounded TTL so
// a renamed or removed tenant stops resolving within one TTL at worst;
// Invalidate drops an entry immediately.
type Resolver struct {
	repo  Repository
	cache *gocache.Cache
}

// NewResolver creates a resolver with the given cache TTL.
func NewResolver(repo Repository, ttl, cleanupInterval time.Duration) *Resolver {
	return &Resolver{
		repo:  repo,
		cache: gocache.New(ttl, cleanupInterval),
	}
}

// Resolve looks a token up in the registry, serving from cache when warm.
// An unknown token returns ErrTenantNotFound; lookup errors are not
// cached.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Tenant, error) {
	if token == "" {
		return nil, ErrTenantNotFound
	}
	if cached, ok := r.cache.Get(token); ok {
		return cached.(*Tenant), nil
	}

	t, err := r.repo.GetByTenantID(ctx, token)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(token, t)
	return t, nil
}

// Invalidate drops a cached resolution after a tenant record change.
func (r *Resolver) Invalidate(token string) {
	r.cache.Delete(token)
}
