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

package transport

import "net"

// isTimeoutOrWouldBlock reports whether err is the kind of transient failure
// a non-blocking Receive should surface as "nothing ready" rather than a
// hard error.
func isTimeoutOrWouldBlock(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
