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

package cmd

import (
	"fmt"

	"github.com/arunj123/go-someip/stats"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type status int

const (
	ok status = iota
	warn
	fail
)

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")
var failString = color.RedString("[FAIL]")

var statusToString = []string{okString, warnString, failString}

// check is one health judgement drawn from a stats.Snapshot.
type check func(s stats.Snapshot) (status, string)

func checkTimeouts(s stats.Snapshot) (status, string) {
	if s.RequestsTimedOut == 0 {
		return ok, "no requests have timed out"
	}
	return warn, fmt.Sprintf("%.0f requests have timed out", s.RequestsTimedOut)
}

func checkMalformed(s stats.Snapshot) (status, string) {
	if s.MalformedDropped == 0 {
		return ok, "no malformed messages dropped"
	}
	return fail, fmt.Sprintf("%.0f malformed messages dropped", s.MalformedDropped)
}

func checkReassembly(s stats.Snapshot) (status, string) {
	if s.ReassemblyPending == 0 {
		return ok, "no TP reassembly in flight"
	}
	return ok, fmt.Sprintf("%d TP reassembly keys in flight", s.ReassemblyPending)
}

func checkWorkerQueue(s stats.Snapshot) (status, string) {
	switch {
	case s.WorkerQueueDepth == 0:
		return ok, "worker pool idle"
	case s.WorkerQueueDepth < 64:
		return ok, fmt.Sprintf("worker queue depth %d", s.WorkerQueueDepth)
	default:
		return warn, fmt.Sprintf("worker queue depth %d, handlers may be falling behind", s.WorkerQueueDepth)
	}
}

var statusChecks = []check{checkTimeouts, checkMalformed, checkReassembly, checkWorkerQueue}

func runStatus() error {
	snap, err := fetchSnapshot(rootHostFlag)
	if err != nil {
		return err
	}
	worst := ok
	for _, c := range statusChecks {
		st, msg := c(snap)
		if st > worst {
			worst = st
		}
		fmt.Printf("%s %s\n", statusToString[st], msg)
	}
	fmt.Printf("\n%d requests completed, %d offers sent, %d finds sent, %d subscriptions active\n",
		int64(snap.RequestsCompleted), int64(snap.SDOffersSent), int64(snap.SDFindsSent), snap.SDSubscriptions)
	if worst == fail {
		return fmt.Errorf("someipd at %s is unhealthy", rootHostFlag)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print a colour-coded health summary of a running someipd",
	Run: func(_ *cobra.Command, _ []string) {
		if err := runStatus(); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}
