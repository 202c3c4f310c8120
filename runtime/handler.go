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

package runtime

import "github.com/arunj123/go-someip/wire"

// Handler answers inbound Request/RequestNoReturn/Notification messages
// addressed to a locally offered service-id. Fn returns the response
// payload and true when a Response should be sent; it returns false when no
// reply is warranted (always the case for Notification and
// RequestNoReturn, spec.md §4.5).
type Handler struct {
	Fn func(h wire.Header, payload []byte) (response []byte, ok bool)
	// Blocking marks handlers that may take a while (disk, another RPC,
	// sleep) - these run on the worker pool, keyed by ClientID so calls
	// from one client stay ordered, instead of inline on the event loop.
	Blocking bool
}
