// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package loader

// State is the lifecycle position of a Loader.
type State string

const (
	StateIdle      State = "idle"
	StateStarted   State = "started"
	StateLoading   State = "loading"
	StateDelivered State = "delivered"
	StateStopped   State = "stopped"
	StateReset     State = "reset"
)
