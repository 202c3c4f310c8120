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

package config

// Default SD addressing and timers, spec.md §6.
const (
	DefaultV4MulticastIP   = "224.0.0.1"
	DefaultV6MulticastIP   = "ff02::4:c"
	DefaultSDPort          = 30490
	DefaultInitialDelayMin = 10
	DefaultInitialDelayMax = 100
	DefaultRepetitionBase  = 100
	DefaultRepetitionMax   = 3
	DefaultCyclicDelay     = 1000
	DefaultTTLSeconds      = 0x00FFFFFF
	DefaultReqRespMin      = 10
	DefaultReqRespMax      = 100
	DefaultRequestTimeout  = 2000
)

// ApplyDefaults fills every unset Timers field (and the top-level SD
// sub-configs) with the spec.md §6 defaults.
func (t *Tree) ApplyDefaults() {
	for alias, iface := range t.Interfaces {
		iface.SD.Timers = applyTimerDefaults(iface.SD.Timers)
		t.Interfaces[alias] = iface
	}
	for alias, inst := range t.Instances {
		inst.SD.Timers = applyTimerDefaults(inst.SD.Timers)
		t.Instances[alias] = inst
	}
}

func applyTimerDefaults(tm Timers) Timers {
	if tm.InitialDelayMinMs == 0 {
		tm.InitialDelayMinMs = DefaultInitialDelayMin
	}
	if tm.InitialDelayMaxMs == 0 {
		tm.InitialDelayMaxMs = DefaultInitialDelayMax
	}
	if tm.RepetitionBaseMs == 0 {
		tm.RepetitionBaseMs = DefaultRepetitionBase
	}
	if tm.RepetitionMax == 0 {
		tm.RepetitionMax = DefaultRepetitionMax
	}
	if tm.CyclicDelayMs == 0 {
		tm.CyclicDelayMs = DefaultCyclicDelay
	}
	if tm.TTLSeconds == 0 {
		tm.TTLSeconds = DefaultTTLSeconds
	}
	if tm.RequestRespMinMs == 0 {
		tm.RequestRespMinMs = DefaultReqRespMin
	}
	if tm.RequestRespMaxMs == 0 {
		tm.RequestRespMaxMs = DefaultReqRespMax
	}
	if tm.RequestTimeoutMs == 0 {
		tm.RequestTimeoutMs = DefaultRequestTimeout
	}
	return tm
}

// AsMillis exposes every timer field for the runtime layer to convert into
// an sd.Timing - kept here rather than in package sd so config stays free
// of domain-package imports; runtime wires the two together.
func (tm Timers) AsMillis() (initMin, initMax, repBase, cyclic, reqRespMin, reqRespMax, reqTimeout int, repMax int, ttl uint32) {
	return tm.InitialDelayMinMs, tm.InitialDelayMaxMs, tm.RepetitionBaseMs, tm.CyclicDelayMs,
		tm.RequestRespMinMs, tm.RequestRespMaxMs, tm.RequestTimeoutMs, tm.RepetitionMax, uint32(tm.TTLSeconds)
}
