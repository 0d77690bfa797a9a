package channeldb

import "fmt"

var (
	// ErrSwapNotFound is returned when no record exists for a requested
	// SwapId.
	ErrSwapNotFound = fmt.Errorf("no swap record found for that id")
)
