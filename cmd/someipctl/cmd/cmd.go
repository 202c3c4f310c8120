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

// Package cmd implements the someipctl command tree, grounded on
// calnex/cmd's RootCmd-plus-init()-registration layout.
package cmd

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the main entry point. Exported so main can just call Execute.
var RootCmd = &cobra.Command{
	Use:   "someipctl",
	Short: "inspect a running someipd instance",
}

var (
	rootHostFlag    string
	rootTimeoutFlag time.Duration
)

func init() {
	RootCmd.PersistentFlags().StringVarP(&rootHostFlag, "host", "H", "localhost:8888", "someipd monitoring address (host:port)")
	RootCmd.PersistentFlags().DurationVarP(&rootTimeoutFlag, "timeout", "t", 2*time.Second, "HTTP request timeout")
}

// Execute is the CLI entry point.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
