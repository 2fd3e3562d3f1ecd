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

// Package configure applies the Harbor project configuration through the
// REST API.
//
// Each project is handled in order: the project itself, its robot account,
// its tag retention policy and its immutable tag rules. The garbage
// collection schedule is set once at the end. Every step checks the current
// state first and only writes what is missing or different, so Run can be
// repeated.
//
// A robot secret is only returned by Harbor when the robot is created. It is
// stored in dockerconfigjson Secrets right away and read back from there on
// later runs. A robot that exists without a stored secret is reported as a
// warning since its secret cannot be recovered.
package configure
