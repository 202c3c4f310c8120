/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package sd

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// MatchVersionConstraint resolves a required client's version constraint
// string (e.g. ">=1.2, <2.0") against a discovered (major, minor) pair,
// supplementing spec.md's literal exact-match behaviour. An empty
// constraint always matches. No code path in this module calls it.
func MatchVersionConstraint(constraint string, major uint8, minor uint32) (bool, error) {
	if constraint == "" {
		return true, nil
	}
	constraints, err := version.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("sd: invalid version constraint %q: %w", constraint, err)
	}
	v, err := version.NewVersion(fmt.Sprintf("%d.%d", major, minor))
	if err != nil {
		return false, fmt.Errorf("sd: invalid discovered version %d.%d: %w", major, minor, err)
	}
	return constraints.Check(v), nil
}
