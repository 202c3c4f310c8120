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
	"os"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runStats() error {
	snap, err := fetchSnapshot(rootHostFlag)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetColWidth(30)
	table.SetHeader([]string{"counter", "value"})
	table.Append([]string{"sd_offers_sent", fmt.Sprintf("%.0f", snap.SDOffersSent)})
	table.Append([]string{"sd_finds_sent", fmt.Sprintf("%.0f", snap.SDFindsSent)})
	table.Append([]string{"sd_offers_received", fmt.Sprintf("%.0f", snap.SDOffersReceived)})
	table.Append([]string{"sd_subscriptions", fmt.Sprintf("%d", snap.SDSubscriptions)})
	table.Append([]string{"pending_requests", fmt.Sprintf("%d", snap.PendingRequests)})
	table.Append([]string{"tp_reassembly_pending", fmt.Sprintf("%d", snap.ReassemblyPending)})
	table.Append([]string{"worker_queue_depth", fmt.Sprintf("%d", snap.WorkerQueueDepth)})
	table.Append([]string{"requests_completed", fmt.Sprintf("%.0f", snap.RequestsCompleted)})
	table.Append([]string{"requests_timed_out", fmt.Sprintf("%.0f", snap.RequestsTimedOut)})
	table.Append([]string{"malformed_messages_dropped", fmt.Sprintf("%.0f", snap.MalformedDropped)})
	table.Render()
	return nil
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "dump every counter from a running someipd as a table",
	Run: func(_ *cobra.Command, _ []string) {
		if err := runStats(); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	RootCmd.AddCommand(statsCmd)
}
