package models

// Account is one Gmail mailbox the forwarder polls. Loaded from the
// accounts file at startup, immutable afterwards.
type Account struct {
	ID        string `json:"id"`        // Stable identifier, used as the dedup key prefix
	Name      string `json:"name"`      // Display name shown in the chat header
	TokenPath string `json:"tokenPath"` // Per-account OAuth token JSON file
}
