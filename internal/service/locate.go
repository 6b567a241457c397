package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/richardliu001/location-service/internal/geo"
	"go.uber.org/zap"
)

const maxNameLength = 100

// locate geocodes address. A blank address or a failed lookup yields no coordinate.
func locate(ctx context.Context, g geo.Resolver, log *zap.SugaredLogger, address string) (lat, lng *float64) {
	if strings.TrimSpace(address) == "" {
		return nil, nil
	}
	c := g.Resolve(ctx, address)
	if !c.IsResolved() {
		log.Warnw("address not geocoded, storing without coordinate", "address", address)
		return nil, nil
	}
	return &c.Latitude, &c.Longitude
}

func validName(name string) bool {
	return name != "" && utf8.RuneCountInString(name) <= maxNameLength
}
