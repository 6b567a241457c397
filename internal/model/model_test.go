package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextCode(t *testing.T) {
	assert.Equal(t, "WH-001", NextCode("WH", ""))
	assert.Equal(t, "WH-008", NextCode("WH", "WH-007"))
	assert.Equal(t, "AGC-1000", NextCode("AGC", "AGC-999"))
	assert.Equal(t, "FC-001", NextCode("FC", "garbage"))
}

func TestSiteCodePrefix(t *testing.T) {
	p, ok := SiteCodePrefix(SiteKindWarehouse)
	assert.True(t, ok)
	assert.Equal(t, "WH", p)

	p, ok = SiteCodePrefix(SiteKindFactory)
	assert.True(t, ok)
	assert.Equal(t, "FC", p)

	_, ok = SiteCodePrefix("SHOP")
	assert.False(t, ok)
	assert.False(t, SiteKind("SHOP").Valid())
}

func TestLifecycleStatusTransitions(t *testing.T) {
	assert.True(t, StatusActive.CanTransitionTo(StatusInactive))
	assert.True(t, StatusActive.CanTransitionTo(StatusActive))
	assert.False(t, StatusInactive.CanTransitionTo(StatusActive))
	assert.False(t, LifecycleStatus("DELETED").Valid())
}

func TestOutboxEventIsDead(t *testing.T) {
	evt := OutboxEvent{Status: OutboxFailed, RetryCount: 9}
	assert.False(t, evt.IsDead(10))
	evt.RetryCount = 10
	assert.True(t, evt.IsDead(10))
	evt.Status = OutboxReady
	assert.False(t, evt.IsDead(10))
}
