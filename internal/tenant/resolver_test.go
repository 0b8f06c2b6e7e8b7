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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates tenant resolution and its cache behavior.
// Scope: Unit Test
// Expected: The first lookup hits the registry, repeats are served from cache until the TTL or an invalidation.
func TestResolver_Resolve(t *testing.T) {
	t.Run("caches a successful resolution", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByTenantID", mock.Anything, "acme_01").
			Return(&Tenant{TenantID: "acme_01", Name: "ACME"}, nil).Once()

		r := NewResolver(repo, time.Minute, time.Minute)

		for i := 0; i < 3; i++ {
			tn, err := r.Resolve(context.Background(), "acme_01")
			require.NoError(t, err)
			assert.Equal(t, "ACME", tn.Name)
		}

		repo.AssertNumberOfCalls(t, "GetByTenantID", 1)
	})

	t.Run("empty token never resolves", func(t *testing.T) {
		repo := &mockRepository{}
		r := NewResolver(repo, time.Minute, time.Minute)

		_, err := r.Resolve(context.Background(), "")
		assert.ErrorIs(t, err, ErrTenantNotFound)
		repo.AssertNotCalled(t, "GetByTenantID", mock.Anything, mock.Anything)
	})

	t.Run("unknown tenant is not cached", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByTenantID", mock.Anything, "ghost").Return(nil, ErrTenantNotFound).Twice()

		r := NewResolver(repo, time.Minute, time.Minute)

		_, err := r.Resolve(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrTenantNotFound)
		_, err = r.Resolve(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrTenantNotFound)

		repo.AssertExpectations(t)
	})

	t.Run("lookup errors are not cached", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByTenantID", mock.Anything, "flaky").Return(nil, errors.New("connection refused")).Once()
		repo.On("GetByTenantID", mock.Anything, "flaky").Return(&Tenant{TenantID: "flaky"}, nil).Once()

		r := NewResolver(repo, time.Minute, time.Minute)

		_, err := r.Resolve(context.Background(), "flaky")
		require.Error(t, err)
		tn, err := r.Resolve(context.Background(), "flaky")
		require.NoError(t, err)
		assert.Equal(t, "flaky", tn.TenantID)
	})

	t.Run("invalidate forces a fresh lookup", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByTenantID", mock.Anything, "acme_01").
			Return(&Tenant{TenantID: "acme_01", Name: "old name"}, nil).Once()
		repo.On("GetByTenantID", mock.Anything, "acme_01").
			Return(&Tenant{TenantID: "acme_01", Name: "new name"}, nil).Once()

		r := NewResolver(repo, time.Minute, time.Minute)

		tn, err := r.Resolve(context.Background(), "acme_01")
		require.NoError(t, err)
		assert.Equal(t, "old name", tn.Name)

		r.Invalidate("acme_01")

		tn, err = r.Resolve(context.Background(), "acme_01")
		require.NoError(t, err)
		assert.Equal(t, "new name", tn.Name)
	})

	t.Run("entries expire with the ttl", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("GetByTenantID", mock.Anything, "acme_01").
			Return(&Tenant{TenantID: "acme_01"}, nil).Twice()

		r := NewResolver(repo, 20*time.Millisecond, time.Minute)

		_, err := r.Resolve(context.Background(), "acme_01")
		require.NoError(t, err)

		time.Sleep(40 * time.Millisecond)

		_, err = r.Resolve(context.Background(), "acme_01")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}
