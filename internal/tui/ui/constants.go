package ui

import "time"

// Default view dimensions.
const (
	DefaultWidth  = 100
	DefaultHeight = 24

	// DefaultLogLines is how many recent log entries the log panel shows.
	DefaultLogLines = 6
)

// DefaultRefreshInterval is how often the status view sweeps expired plugins.
const DefaultRefreshInterval = time.Second
