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

// Package models defines the transport records of the tracker wire protocol:
// the request Envelope and the correlated Response.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/apexmetrology/trackerd/pkg/codec"
)

// Envelope wraps a message with routing and timeout metadata. Envelopes are
// created by callers (or parsed from wire text) and handed by value to the
// dispatch engine, which owns them until a Response is produced or abandoned.
type Envelope struct {
	// ID correlates the eventual Response. Unique for the lifetime of an
	// outstanding request; 0 means "engine assigns one".
	ID uint64

	// Name is the registered message name (event, state command or action
	// command).
	Name string

	// Params is the structured payload for the message constructor.
	Params map[string]any

	// Sync requests serialized execution relative to other sync requests.
	Sync bool

	// NeedsReply marks that a Response is expected. Envelopes without it are
	// fire-and-forget.
	NeedsReply bool

	// TimeoutMs bounds how long the caller waits and how stale the envelope
	// may be when the worker picks it up. 0 = unbounded.
	TimeoutMs uint32

	// CreatedAt is the monotonic arrival timestamp.
	CreatedAt time.Time
}

// NewEnvelope builds an envelope with the creation timestamp set.
func NewEnvelope(id uint64, name string, params map[string]any, sync, needsReply bool, timeoutMs uint32) *Envelope {
	return &Envelope{
		ID:         id,
		Name:       name,
		Params:     params,
		Sync:       sync,
		NeedsReply: needsReply,
		TimeoutMs:  timeoutMs,
		CreatedAt:  time.Now(),
	}
}

// Age returns how long ago the envelope was created.
func (e *Envelope) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// TimedOut reports whether the envelope has exceeded its timeout. Envelopes
// with TimeoutMs 0 never time out.
func (e *Envelope) TimedOut() bool {
	if e.TimeoutMs == 0 {
		return false
	}

	return e.Age() > time.Duration(e.TimeoutMs)*time.Millisecond
}

// Remaining returns the time left until the timeout elapses, clamped at zero.
func (e *Envelope) Remaining() time.Duration {
	if e.TimeoutMs == 0 {
		return time.Duration(1<<63 - 1)
	}

	remaining := time.Duration(e.TimeoutMs)*time.Millisecond - e.Age()
	if remaining < 0 {
		return 0
	}

	return remaining
}

// wireRequest is the JSON shape of an inbound envelope. NeedsReply is a
// pointer so that an absent field can default to the value of Sync.
type wireRequest struct {
	ID         uint64         `json:"id"`
	Name       string         `json:"name"`
	Params     map[string]any `json:"params"`
	Sync       bool           `json:"sync"`
	NeedsReply *bool          `json:"needsReply"`
	TimeoutMs  uint32         `json:"timeoutMs"`
}

// ParseEnvelope decodes wire text into an Envelope. An absent needsReply
// defaults to the sync flag; an absent id stays 0 for the engine to assign.
func ParseEnvelope(text []byte) (*Envelope, error) {
	var req wireRequest
	if err := codec.Unmarshal(text, &req); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	if req.Name == "" {
		return nil, errors.New("malformed envelope: missing message name")
	}

	needsReply := req.Sync
	if req.NeedsReply != nil {
		needsReply = *req.NeedsReply
	}

	return NewEnvelope(req.ID, req.Name, req.Params, req.Sync, needsReply, req.TimeoutMs), nil
}

// ToWire serializes the envelope back to its request JSON form.
func (e *Envelope) ToWire() ([]byte, error) {
	return codec.Marshal(wireRequest{
		ID:         e.ID,
		Name:       e.Name,
		Params:     e.Params,
		Sync:       e.Sync,
		NeedsReply: &e.NeedsReply,
		TimeoutMs:  e.TimeoutMs,
	})
}
