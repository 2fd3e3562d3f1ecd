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

package serializer

import "context"

// Serializer writes a value somewhere in a configured format.
// The context bounds I/O that may block, such as ConfigMap writes.
type Serializer interface {
	Serialize(ctx context.Context, data any) error
}

// Closer is implemented by Serializers that hold resources.
type Closer interface {
	Close() error
}

// SerializeCloser is a Serializer that must be closed after use.
type SerializeCloser interface {
	Serializer
	Closer
}

// Tabular is implemented by values with their own table layout.
// Table output uses it in place of flattened FIELD/VALUE rows.
type Tabular interface {
	Table() (header []string, rows [][]string)
}

// Kinded is implemented by values that name the ConfigMap component they
// are stored under.
type Kinded interface {
	Kind() string
}
