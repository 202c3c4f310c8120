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
	"net"

	"github.com/arunj123/go-someip/transport"
)

// Listener owns the SD sockets for one configured interface: up to one IPv4
// and one IPv6 UDP transport, each already joined to its multicast group.
// spec.md §4.4: "The SD owns a set of Listeners, each with up to one v4 and
// one v6 transport and their respective multicast groups and local unicast
// IPs."
type Listener struct {
	Alias string
	V4    transport.Transport
	V6    transport.Transport

	V4Unicast net.IP
	V6Unicast net.IP

	// V4Group/V6Group are the multicast group addresses this listener's
	// transports joined, used as the emit destination for offers/finds.
	V4Group *net.UDPAddr
	V6Group *net.UDPAddr
}

// send writes b to dst on whichever of V4/V6 matches dst's address family.
func (l *Listener) send(b []byte, dst net.Addr) (int, error) {
	addr, ok := dst.(*net.UDPAddr)
	if !ok {
		return 0, transport.ErrInvalidArgument
	}
	if addr.IP.To4() != nil && l.V4 != nil {
		return l.V4.Send(b, dst)
	}
	if l.V6 != nil {
		return l.V6.Send(b, dst)
	}
	return 0, transport.ErrInvalidArgument
}
