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

package messages

// State commands are imperatives expected to move the state machine.

type PowerOn struct{}

func (PowerOn) MessageName() string    { return "PowerOn" }
func (PowerOn) Params() map[string]any { return map[string]any{} }

type PowerOff struct{}

func (PowerOff) MessageName() string    { return "PowerOff" }
func (PowerOff) Params() map[string]any { return map[string]any{} }

type StartSearch struct{}

func (StartSearch) MessageName() string    { return "StartSearch" }
func (StartSearch) Params() map[string]any { return map[string]any{} }

type StartMeasure struct{}

func (StartMeasure) MessageName() string    { return "StartMeasure" }
func (StartMeasure) Params() map[string]any { return map[string]any{} }

type StopMeasure struct{}

func (StopMeasure) MessageName() string    { return "StopMeasure" }
func (StopMeasure) Params() map[string]any { return map[string]any{} }

type Reset struct{}

func (Reset) MessageName() string    { return "Reset" }
func (Reset) Params() map[string]any { return map[string]any{} }

type ReturnToIdle struct{}

func (ReturnToIdle) MessageName() string    { return "ReturnToIdle" }
func (ReturnToIdle) Params() map[string]any { return map[string]any{} }
