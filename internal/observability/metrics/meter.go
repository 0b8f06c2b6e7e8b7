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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter

	// Domain instruments, created once at startup
	Transitions      metric.Int64Counter
	GuardRejections  metric.Int64Counter
	ProvisionedCount metric.Int64Counter
	TransitionTime   metric.Float64Histogram
}

// New creates a new meter instance and registers the domain instruments
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	var meter metric.Meter
	if !cfg.Enabled {
		meter = otel.Meter("noop")
	} else {
		meter = otel.Meter(serviceName)
	}

	m := &Meter{meter: meter}

	var err error
	if m.Transitions, err = meter.Int64Counter(
		"issue_transitions_total",
		metric.WithDescription("Issue state machine transitions applied"),
	); err != nil {
		return nil, fmt.Errorf("failed to create transitions counter: %w", err)
	}

	if m.GuardRejections, err = meter.Int64Counter(
		"issue_guard_rejections_total",
		metric.WithDescription("Issue actions rejected by a transition guard"),
	); err != nil {
		return nil, fmt.Errorf("failed to create guard rejections counter: %w", err)
	}

	if m.ProvisionedCount, err = meter.Int64Counter(
		"tenants_provisioned_total",
		metric.WithDescription("Tenant partitions provisioned"),
	); err != nil {
		return nil, fmt.Errorf("failed to create provisioned counter: %w", err)
	}

	if m.TransitionTime, err = meter.Float64Histogram(
		"issue_transition_duration",
		metric.WithDescription("Wall time of one issue transition transaction"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create transition histogram: %w", err)
	}

	return m, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}
