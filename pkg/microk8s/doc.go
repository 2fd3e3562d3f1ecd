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

// Package microk8s installs and prepares the MicroK8s snap.
//
// The stage runs, in order:
//
//   - Install: snap install microk8s when `snap list microk8s` fails
//   - EnsureGroup: add the invoking user to the microk8s group
//   - WaitReady: microk8s status --wait-ready
//   - EnableAddons: enable addons not yet reported as enabled
//   - WriteKubeconfig: write `microk8s config` to the user's kubeconfig
//
// Joining the group does not affect the running process. When the user was
// just added, NeedsReexec reports true and Reexec replaces the process with
// `sg microk8s -c <argv>`; EnvReexec guards against loops. Root needs no
// group and is never re-executed.
//
// Commands that need root go through `sudo -n` when labctl is not root.
// Under sudo the kubeconfig lands in the home of the configured user
// (SUDO_USER by default) and is chowned to them.
//
// ServiceStatus reads the ActiveState of the snap.microk8s.daemon-* units over
// the systemd D-Bus API.
package microk8s
