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

// Package api is a client for the subset of the Harbor REST API v2.0 used to
// configure a fresh registry: projects, robot accounts, tag retention,
// immutable tag rules and the garbage collection schedule.
//
// Every request carries basic auth and an X-Request-Id, passes a client-side
// rate limiter, and is retried with exponential backoff on transport errors,
// 429 and 5xx responses. Non-2xx responses become *errors.StructuredError
// values whose code follows the HTTP status:
//
//	404       NOT_FOUND
//	401, 403  UNAUTHORIZED
//	409       CONFLICT
//	429       RATE_LIMIT_EXCEEDED
//	5xx       SERVICE_UNAVAILABLE
//
// Harbor's error messages from the response body are included in the error.
package api
