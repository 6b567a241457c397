package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/richardliu001/location-service/internal/config"
	"github.com/richardliu001/location-service/internal/model"
)

// ErrUnroutable means no route exists for an (aggregate type, event type) pair.
// It is a programming error and the row is failed, never dropped.
var ErrUnroutable = errors.New("unroutable outbox event")

type route struct {
	topic      string
	eventTypes map[string]struct{}
	newPayload func() any
}

// Router maps outbox rows to a topic and a typed wire payload. The table is built
// once and never mutated.
type Router struct {
	routes map[string]route
	legacy map[string]string // DISTANCE event type -> aggregate type carrying its shape
}

// Message is a routed outbox row ready to be written to the broker.
type Message struct {
	Topic    string
	Key      string
	Envelope Envelope
}

// Value serialises the envelope.
func (m Message) Value() ([]byte, error) {
	return json.Marshal(m.Envelope)
}

func eventSet(types ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

// NewRouter builds the routing table for the configured topics.
func NewRouter(topics config.TopicConfig) *Router {
	siteEvents := eventSet(model.EventSiteCreated, model.EventSiteUpdated, model.EventSiteDeactivated)
	sitePayload := func() any { return &SitePayload{} }
	siteCounterpartDistance := func() any { return &SiteCounterpartDistancePayload{} }
	siteDistance := func() any { return &SiteDistancePayload{} }

	return &Router{
		routes: map[string]route{
			model.AggregateWarehouse: {
				topic:      topics.Warehouse,
				eventTypes: siteEvents,
				newPayload: sitePayload,
			},
			model.AggregateFactory: {
				topic:      topics.Factory,
				eventTypes: siteEvents,
				newPayload: sitePayload,
			},
			model.AggregateCounterpart: {
				topic: topics.Counterpart,
				eventTypes: eventSet(model.EventCounterpartCreated, model.EventCounterpartUpdated,
					model.EventCounterpartDeactivated),
				newPayload: func() any { return &CounterpartPayload{} },
			},
			model.AggregateSiteCounterpartDistance: {
				topic:      topics.SiteCounterpartDistance,
				eventTypes: eventSet(model.EventDistanceCalculated),
				newPayload: siteCounterpartDistance,
			},
			model.AggregateSiteFactoryDistance: {
				topic:      topics.SiteFactoryDistance,
				eventTypes: eventSet(model.EventSiteDistanceCalculated),
				newPayload: siteDistance,
			},
		},
		legacy: map[string]string{
			model.EventDistanceCalculated:     model.AggregateSiteCounterpartDistance,
			model.EventSiteDistanceCalculated: model.AggregateSiteFactoryDistance,
			model.EventLegacyFactoryDistance:  model.AggregateSiteFactoryDistance,
		},
	}
}

func (r *Router) lookup(aggregateType, eventType string) (route, error) {
	if aggregateType == model.AggregateDistance {
		target, ok := r.legacy[eventType]
		if !ok {
			return route{}, fmt.Errorf("%w: aggregate %q event %q", ErrUnroutable, aggregateType, eventType)
		}
		// legacy rows keep their own event type, only the shape is borrowed
		rt := r.routes[target]
		return route{topic: rt.topic, newPayload: rt.newPayload}, nil
	}
	rt, ok := r.routes[aggregateType]
	if !ok {
		return route{}, fmt.Errorf("%w: aggregate %q", ErrUnroutable, aggregateType)
	}
	if _, ok := rt.eventTypes[eventType]; !ok {
		return route{}, fmt.Errorf("%w: aggregate %q event %q", ErrUnroutable, aggregateType, eventType)
	}
	return rt, nil
}

// Topic returns the topic for an (aggregate type, event type) pair.
func (r *Router) Topic(aggregateType, eventType string) (string, error) {
	rt, err := r.lookup(aggregateType, eventType)
	if err != nil {
		return "", err
	}
	return rt.topic, nil
}

// Route decodes the stored payload into its typed shape and wraps it in the
// envelope copied from the row.
func (r *Router) Route(evt model.OutboxEvent) (Message, error) {
	rt, err := r.lookup(evt.AggregateType, evt.EventType)
	if err != nil {
		return Message{}, err
	}
	payload := rt.newPayload()
	if err := json.Unmarshal([]byte(evt.Payload), payload); err != nil {
		return Message{}, fmt.Errorf("decode %s payload: %w", evt.AggregateType, err)
	}
	return Message{
		Topic: rt.topic,
		Key:   strconv.FormatUint(evt.AggregateID, 10),
		Envelope: Envelope{
			EventID:    evt.EventID,
			EventType:  evt.EventType,
			Version:    evt.Version,
			OccurredAt: evt.CreatedAt.UTC().Format(time.RFC3339Nano),
			Payload:    payload,
		},
	}, nil
}
