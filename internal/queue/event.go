// Package queue defines message payloads exchanged over the message broker.
package queue

// SpotBookedEvent is published after an allocation commits.  It carries
// enough information for downstream consumers (activity feed, analytics)
// without querying the primary database.
type SpotBookedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	LotID         uint64 `json:"lot_id"`
	LotName       string `json:"lot_name"`
	SpotID        uint64 `json:"spot_id"`
	ParkedAt      string `json:"parked_at"`
}

// SpotReleasedEvent is published after a release commits, including the
// cost computed inside the release transaction.
type SpotReleasedEvent struct {
	ReservationID uint64  `json:"reservation_id"`
	UserID        uint64  `json:"user_id"`
	LotID         uint64  `json:"lot_id"`
	LotName       string  `json:"lot_name"`
	SpotID        uint64  `json:"spot_id"`
	ParkedAt      string  `json:"parked_at"`
	LeftAt        string  `json:"left_at"`
	Cost          float64 `json:"cost"`
}
