// Copyright 2025 Apex Metrology GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package constants

import "time"

const (
	// WorkerPollInterval is how long the dispatch worker waits on an empty
	// queue before re-checking the running flag. Keeps shutdown responsive.
	WorkerPollInterval = 100 * time.Millisecond

	// DefaultResponseWait is the default wait in WaitForResponse.
	DefaultResponseWait = 5 * time.Second
)

const (
	// InflightCullInterval is how often the outstanding-request-id map drops
	// expired entries.
	InflightCullInterval = 30 * time.Second

	// InflightTTL bounds how long a request id is considered outstanding when
	// its envelope carries no timeout. After this the id may be reused.
	InflightTTL = 5 * time.Minute
)
