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

//go:build linux

package transport

import "golang.org/x/sys/unix"

// bindToDevice pins fd to a specific network interface via SO_BINDTODEVICE,
// grounded on ptp4u's use of golang.org/x/sys/unix for FD-level socket
// options. Only supported on Linux.
func bindToDevice(fd int, ifname string) error {
	return unix.BindToDevice(fd, ifname)
}
