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

package api

import (
	"context"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/homelab/labctl/pkg/errors"
)

const (
	headerTotalCount = "X-Total-Count"
	headerLink       = "Link"

	// maxPages stops a server that keeps announcing a next page.
	maxPages = 1000
)

// pageSize is the page_size of list requests.
var pageSize = 100

// listAll fetches every page of a Harbor list endpoint. It stops on a short
// or empty page, once X-Total-Count items are read, or when the Link header
// has no rel="next".
func listAll[T any](ctx context.Context, c *Client, r request) ([]T, error) {
	var all []T
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		maps.Copy(q, r.query)
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(pageSize))
		r.query = q

		var items []T
		hdr, err := c.doJSON(ctx, r, &items)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !hasNextPage(hdr, len(items), len(all)) {
			return all, nil
		}
	}
	return nil, apperrors.New(apperrors.ErrCodeInternal, "too many pages listing "+r.path)
}

func hasNextPage(hdr http.Header, got, seen int) bool {
	if got == 0 {
		return false
	}
	if total, err := strconv.Atoi(hdr.Get(headerTotalCount)); err == nil {
		return seen < total
	}
	if link := hdr.Get(headerLink); link != "" {
		return strings.Contains(link, `rel="next"`)
	}
	return got >= pageSize
}
