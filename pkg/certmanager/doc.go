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

// Package certmanager installs cert-manager and issues the Harbor TLS certificate.
//
// Certificates come from Let's Encrypt through an ACME ClusterIssuer that
// solves DNS-01 challenges in Route53. The Route53 secret access key is stored
// in a Secret in the cert-manager namespace; the access key ID is inlined in
// the issuer.
//
// ClusterIssuer and Certificate objects are managed through the dynamic
// client. An existing object is updated only when its spec does not already
// contain the desired fields, so fields defaulted by cert-manager do not cause
// churn.
package certmanager
