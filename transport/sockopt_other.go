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

//go:build !linux

package transport

import "fmt"

// bindToDevice is a no-op stub on platforms without SO_BINDTODEVICE;
// multicast interface selection still works via JoinGroup's ifi argument.
func bindToDevice(_ int, ifname string) error {
	return fmt.Errorf("transport: SO_BINDTODEVICE not supported on this platform (want %q)", ifname)
}
