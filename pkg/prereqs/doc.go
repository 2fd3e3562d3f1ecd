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

// Package prereqs installs host packages and checks required binaries.
//
// Packages are installed with apt-get only when dpkg-query reports them
// missing, so the stage can be re-run safely:
//
//	r := runner.New()
//	if err := prereqs.EnsurePackages(ctx, r, []string{"snapd"}); err != nil {
//		return err
//	}
//	if err := prereqs.RequireBinaries(r, "snap", "helm"); err != nil {
//		return err
//	}
package prereqs
