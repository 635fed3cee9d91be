package domain

import "time"

// Fixed MAC timing of the 5/6 GHz OFDM PHYs.
const (
	Sifs = 16 * time.Microsecond
	Slot = 9 * time.Microsecond
)
