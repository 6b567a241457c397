package http

import (
	"time"

	"github.com/richardliu001/location-service/internal/model"
	"github.com/richardliu001/location-service/internal/service"
)

type siteResp struct {
	ID        uint64    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Address   string    `json:"address"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	Status    string    `json:"status"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSiteResp(s *model.Site) siteResp {
	return siteResp{
		ID:        s.ID,
		Code:      s.Code,
		Name:      s.Name,
		Kind:      string(s.Kind),
		Address:   s.Address,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Status:    string(s.Status),
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
	}
}

type counterpartResp struct {
	ID             uint64    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	BusinessNumber string    `json:"business_number"`
	CeoName        string    `json:"ceo_name"`
	Address        string    `json:"address"`
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	Status         string    `json:"status"`
	Version        uint64    `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toCounterpartResp(c *model.Counterpart) counterpartResp {
	return counterpartResp{
		ID:             c.ID,
		Code:           c.Code,
		Name:           c.Name,
		BusinessNumber: c.BusinessNumber,
		CeoName:        c.CeoName,
		Address:        c.Address,
		Latitude:       c.Latitude,
		Longitude:      c.Longitude,
		Status:         string(c.Status),
		Version:        c.Version,
		UpdatedAt:      c.UpdatedAt,
	}
}

type pairResp struct {
	ID         uint64 `json:"id"`
	SiteID     uint64 `json:"site_id"`
	PeerID     uint64 `json:"peer_id"`
	DistanceKm string `json:"distance_km"`
	Version    uint64 `json:"version"`
}

type siteDistancesResp struct {
	Counterparts []pairResp `json:"counterparts"`
	Sites        []pairResp `json:"sites"`
}

func toSiteDistancesResp(d service.SiteDistances) siteDistancesResp {
	out := siteDistancesResp{Counterparts: []pairResp{}, Sites: []pairResp{}}
	for _, p := range d.Counterparts {
		out.Counterparts = append(out.Counterparts, pairResp{
			ID: p.ID, SiteID: p.SiteID, PeerID: p.CounterpartID,
			DistanceKm: p.DistanceKm.StringFixed(2), Version: p.Version,
		})
	}
	for _, p := range d.Sites {
		out.Sites = append(out.Sites, pairResp{
			ID: p.ID, SiteID: p.SiteID, PeerID: p.PeerSiteID,
			DistanceKm: p.DistanceKm.StringFixed(2), Version: p.Version,
		})
	}
	return out
}
