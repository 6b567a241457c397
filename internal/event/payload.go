// Package event defines the wire shapes published to the broker and the
// routing table from outbox rows to topics.
package event

// Envelope is the common shape of every published event.
type Envelope struct {
	EventID    string `json:"eventId"`
	EventType  string `json:"eventType"`
	Version    uint64 `json:"version"`
	OccurredAt string `json:"occurredAt"`
	Payload    any    `json:"payload"`
}

type SitePayload struct {
	SiteID    uint64   `json:"siteId"`
	SiteCode  string   `json:"siteCode"`
	SiteName  string   `json:"siteName"`
	Kind      string   `json:"kind"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Status    string   `json:"status"`
	Deleted   bool     `json:"deleted"`
}

type CounterpartPayload struct {
	CounterpartID   uint64   `json:"counterpartId"`
	CounterpartCode string   `json:"counterpartCode"`
	CounterpartName string   `json:"counterpartName"`
	BusinessNumber  string   `json:"businessNumber"`
	CeoName         string   `json:"ceoName"`
	Address         string   `json:"address"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	Status          string   `json:"status"`
	Deleted         bool     `json:"deleted"`
}

// SiteCounterpartDistancePayload describes one site<->counterpart pair.
type SiteCounterpartDistancePayload struct {
	DistanceID    uint64  `json:"distanceId"`
	SiteID        uint64  `json:"siteId"`
	CounterpartID uint64  `json:"counterpartId"`
	DistanceKm    float64 `json:"distanceKm"`
	Deleted       bool    `json:"deleted"`
}

// SiteDistancePayload describes one warehouse<->factory pair.
type SiteDistancePayload struct {
	DistanceID   uint64  `json:"distanceId"`
	SiteID       uint64  `json:"siteId"`
	PeerSiteID   uint64  `json:"peerSiteId"`
	DistanceKm   float64 `json:"distanceKm"`
	SiteName     string  `json:"siteName"`
	PeerSiteName string  `json:"peerSiteName"`
}
