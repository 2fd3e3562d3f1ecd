// Copyright 2026 The labctl Authors.
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

package status

import (
	"context"
	"encoding/json"
	"fmt"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/k8s/resources"
	"github.com/homelab/labctl/pkg/pipeline"
	"github.com/homelab/labctl/pkg/serializer"
)

const (
	// StateNamespace holds labctl's own state.
	StateNamespace = "labctl"
	// SummaryConfigMap stores the last bootstrap summary.
	SummaryConfigMap = "labctl-last-run"

	summaryKey = "bootstrap.json"
)

// SaveSummary stores sum as the last bootstrap run.
func SaveSummary(ctx context.Context, cs kubernetes.Interface, sum *pipeline.Summary) error {
	if _, err := resources.EnsureNamespace(ctx, cs, StateNamespace); err != nil {
		return err
	}
	w := serializer.NewConfigMapWriter(StateNamespace, SummaryConfigMap, serializer.FormatJSON, cs)
	return w.Serialize(ctx, sum)
}

// LoadSummary returns the last stored bootstrap summary, or NOT_FOUND.
func LoadSummary(ctx context.Context, cs kubernetes.Interface) (*pipeline.Summary, error) {
	cm, err := cs.CoreV1().ConfigMaps(StateNamespace).Get(ctx, SummaryConfigMap, metav1.GetOptions{})
	if k8serrors.IsNotFound(err) {
		return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, "no bootstrap summary stored", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bootstrap summary: %w", err)
	}
	raw, ok := cm.Data[summaryKey]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "bootstrap summary is empty")
	}
	var sum pipeline.Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap summary: %w", err)
	}
	return &sum, nil
}
