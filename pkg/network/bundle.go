/*
Copyright 2026 The Ambry Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package network

// Bundle is the result of one receive operation: at most one request to serve, plus a
// possibly empty set of requests to drop. A Bundle returned from a blocking receive is
// never wholly empty.
type Bundle struct {
	// ToServe is the request selected for service, or nil if this receive only yielded
	// drops. Ownership of the request transfers to the caller.
	ToServe *Request

	// ToDrop holds the requests reclassified as drops during this receive: timed out,
	// CoDel-shed, starved-and-culled, or rejected at offer time. Ownership transfers to
	// the caller, which must tear their connections down.
	ToDrop []*Request
}

// Empty reports whether the bundle carries neither a request to serve nor any drops.
func (b Bundle) Empty() bool {
	return b.ToServe == nil && len(b.ToDrop) == 0
}
