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

// Package storage provisions hostPath volumes for Harbor.
//
// Each configured volume gets a host directory, a PersistentVolume pre-bound
// to its claim through claimRef, and the matching PersistentVolumeClaim.
// Objects that already exist are left untouched; a PersistentVolume's spec is
// largely immutable and Retain keeps the data across re-runs.
package storage
