package geo

import "context"

// Resolver turns a free-text address into a coordinate. Failures are not errors:
// they come back as Unresolved and callers branch on IsResolved.
type Resolver interface {
	Resolve(ctx context.Context, address string) Coordinate
}

// NopResolver never resolves anything. Used when no geocoder is configured.
type NopResolver struct{}

func (NopResolver) Resolve(context.Context, string) Coordinate { return Unresolved }
