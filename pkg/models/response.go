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

package models

import (
	"time"

	"github.com/apexmetrology/trackerd/pkg/codec"
)

// Response is the terminal record for an envelope that needed a reply. It
// reuses the request id and carries either a structured result or an error
// reason, never both empty on failure.
type Response struct {
	ID      uint64
	Name    string
	Success bool
	Result  map[string]any
	Error   string

	// RequestCreatedAt is copied from the originating envelope so the wire
	// form can report the request's age.
	RequestCreatedAt time.Time
}

// NewResponse builds a response correlated to the given envelope.
func NewResponse(req *Envelope, success bool, result map[string]any, errText string) *Response {
	return &Response{
		ID:               req.ID,
		Name:             req.Name,
		Success:          success,
		Result:           result,
		Error:            errText,
		RequestCreatedAt: req.CreatedAt,
	}
}

// NewTimeoutResponse is the synthetic failure a caller receives when its wait
// elapses. The underlying work may still complete later with no observer.
func NewTimeoutResponse(id uint64, name string) *Response {
	return &Response{
		ID:               id,
		Name:             name,
		Success:          false,
		Error:            "request timed out",
		RequestCreatedAt: time.Now(),
	}
}

// wireResponse is the JSON shape of an outbound response.
type wireResponse struct {
	ID          uint64         `json:"id"`
	Name        string         `json:"name"`
	TimestampMs uint64         `json:"timestamp_ms"`
	IsResponse  bool           `json:"isResponse"`
	Success     bool           `json:"success"`
	Result      map[string]any `json:"result"`
	Error       string         `json:"error,omitempty"`
}

// ToWire serializes the response. timestamp_ms is the age of the originating
// request at serialization time.
func (r *Response) ToWire() ([]byte, error) {
	ageMs := uint64(0)
	if !r.RequestCreatedAt.IsZero() {
		ageMs = uint64(time.Since(r.RequestCreatedAt).Milliseconds())
	}

	return codec.Marshal(wireResponse{
		ID:          r.ID,
		Name:        r.Name,
		TimestampMs: ageMs,
		IsResponse:  true,
		Success:     r.Success,
		Result:      r.Result,
		Error:       r.Error,
	})
}
