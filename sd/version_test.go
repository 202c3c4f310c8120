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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchVersionConstraintEmptyAlwaysMatches(t *testing.T) {
	ok, err := MatchVersionConstraint("", 9, 9)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMatchVersionConstraintRange(t *testing.T) {
	ok, err := MatchVersionConstraint(">=1.2, <2.0", 1, 5)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = MatchVersionConstraint(">=1.2, <2.0", 2, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMatchVersionConstraintInvalid(t *testing.T) {
	_, err := MatchVersionConstraint("not-a-constraint!!", 1, 0)
	require.Error(t, err)
}
