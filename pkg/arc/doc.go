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

// Package arc installs the GitHub Actions Runner Controller.
//
// The controller chart is installed into its own namespace first. Runner
// scale sets are separate releases in the runners namespace and reference the
// controller's service account, so they are only installed once the
// controller is running.
package arc
