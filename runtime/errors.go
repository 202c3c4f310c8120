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

import "errors"

var (
	// ErrNoHandler names the case of a Request arriving for a service-id
	// nothing offered. The dispatcher does not return it: it answers such a
	// Request with wire.ReturnUnknownService on the wire directly.
	ErrNoHandler = errors.New("runtime: no handler registered for service")
	// ErrRequestTimeout is returned by SendRequestAndWait when no reply
	// arrives within the deadline.
	ErrRequestTimeout = errors.New("runtime: request timed out waiting for a reply")
	// ErrServiceNotFound is returned by GetClient when SD never resolves
	// the requested (service-id, instance-id) within the timeout.
	ErrServiceNotFound = errors.New("runtime: service discovery did not resolve the requested service in time")
	// ErrUnsupportedProtocol is returned when a remote endpoint's L4
	// protocol option isn't one this dispatcher has a transport for.
	ErrUnsupportedProtocol = errors.New("runtime: remote endpoint uses an unsupported transport protocol")
)
