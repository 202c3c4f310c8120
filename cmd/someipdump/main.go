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

// someipdump is a poor man's tshark for SOME/IP: it dumps the messages
// and service discovery packets parsed out of a capture file to stdout.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"

	"github.com/arunj123/go-someip/sd"
	"github.com/arunj123/go-someip/wire"
)

var sdPortFlag int

// LayerSomeIP wraps either a decoded SOME/IP message or an SD packet -
// whichever of sd.DecodePacket/wire.DecodeMessage accepts the payload first
// (SD is tried first), since both share the same UDP/TCP payload space.
type LayerSomeIP struct {
	layers.BaseLayer

	Message *wire.Message
	SD      *sd.Packet
}

// LayerTypeSomeIP is registered as a layer with gopacket.
var LayerTypeSomeIP = gopacket.RegisterLayerType(
	1510,
	gopacket.LayerTypeMetadata{Name: "SOME/IP", Decoder: gopacket.DecodeFunc(decodeSomeIP)},
)

// LayerType returns the type this layer implements.
func (l *LayerSomeIP) LayerType() gopacket.LayerType { return LayerTypeSomeIP }

// Payload is empty, SOME/IP is the final layer someipdump cares about.
func (l *LayerSomeIP) Payload() []byte { return nil }

func decodeSomeIP(data []byte, p gopacket.PacketBuilder) error {
	d := &LayerSomeIP{BaseLayer: layers.BaseLayer{Contents: data[:]}}
	if pkt, err := sd.DecodePacket(data); err == nil {
		d.SD = &pkt
	} else if msg, err := wire.DecodeMessage(data); err == nil {
		d.Message = &msg
	} else {
		return fmt.Errorf("decoding SOME/IP payload: %w", err)
	}
	p.AddLayer(d)
	p.SetApplicationLayer(d)
	return nil
}

type packetHandle interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

func run(input string, sdPort int) error {
	// SD traffic is distinguished from RPC traffic by port, since the wire
	// itself carries no reserved service/method id for SD (spec.md §6).
	layers.RegisterUDPPortLayerType(layers.UDPPort(sdPort), LayerTypeSomeIP)

	var handle packetHandle
	var err error

	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	handle, err = pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		if _, serr := f.Seek(0, 0); serr != nil {
			return fmt.Errorf("seeking in %s: %w", input, serr)
		}
		handle, err = pcapgo.NewReader(f)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", input, err)
		}
	}

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range packetSource.Packets() {
		var content *LayerSomeIP
		if someipLayer := packet.Layer(LayerTypeSomeIP); someipLayer != nil {
			content, _ = someipLayer.(*LayerSomeIP)
		} else if app := packet.ApplicationLayer(); app != nil {
			// RPC service ports are operator-configured, not well known like
			// the SD port, so fall back to a bare decode attempt on whatever
			// UDP/TCP payload gopacket didn't already map to a named layer.
			if msg, err := wire.DecodeMessage(app.Payload()); err == nil {
				content = &LayerSomeIP{Message: &msg}
			}
		}
		if content == nil {
			continue
		}

		var srcIP, dstIP net.IP
		var srcPort, dstPort layers.UDPPort
		if ip6 := packet.Layer(layers.LayerTypeIPv6); ip6 != nil {
			ip, _ := ip6.(*layers.IPv6)
			srcIP, dstIP = ip.SrcIP, ip.DstIP
		} else if ip4 := packet.Layer(layers.LayerTypeIPv4); ip4 != nil {
			ip, _ := ip4.(*layers.IPv4)
			srcIP, dstIP = ip.SrcIP, ip.DstIP
		}
		if udp := packet.Layer(layers.LayerTypeUDP); udp != nil {
			u, _ := udp.(*layers.UDP)
			srcPort, dstPort = u.SrcPort, u.DstPort
		}

		spew.Printf("%s -> %s\n",
			net.JoinHostPort(srcIP.String(), strconv.Itoa(int(srcPort))),
			net.JoinHostPort(dstIP.String(), strconv.Itoa(int(dstPort))),
		)
		switch {
		case content.SD != nil:
			spew.Dump(*content.SD)
		case content.Message != nil:
			spew.Dump(content.Message.Header)
			spew.Printf("payload: %d bytes\n", len(content.Message.Payload))
		}
		spew.Println()

		if errLayer := packet.ErrorLayer(); errLayer != nil {
			return fmt.Errorf("failed to decode: %w", errLayer.Error())
		}
	}
	return nil
}

func main() {
	flag.IntVar(&sdPortFlag, "sdport", 30490, "UDP port service discovery traffic runs on")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "someipdump: dumps SOME/IP messages and SD packets parsed from a capture file to stdout.\nUsage:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "%s [file]\n", os.Args[0])
		fmt.Fprint(flag.CommandLine.Output(), "where [file] is any .pcap or .pcapng packet capture\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if len(flag.Args()) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	if err := run(flag.Arg(0), sdPortFlag); err != nil {
		log.Fatal(err)
	}
}
