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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/arunj123/go-someip/stats"
)

func fetchSnapshot(host string) (stats.Snapshot, error) {
	var snap stats.Snapshot
	client := &http.Client{Timeout: rootTimeoutFlag}
	resp, err := client.Get(fmt.Sprintf("http://%s/", host))
	if err != nil {
		return snap, fmt.Errorf("contacting %s: %w", host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("%s returned %s", host, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decoding snapshot from %s: %w", host, err)
	}
	return snap, nil
}
