package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordStamping(t *testing.T) {
	r := Record{"id": "i-123", "region": "collector-said-this"}

	r.SetRegion("eu-west-1")
	r.SetAccountID("111122223333")

	assert.Equal(t, "i-123", r.ID())
	assert.Equal(t, "eu-west-1", r.Region())
	assert.Equal(t, "111122223333", r.AccountID())
}

func TestRecordFieldsMissing(t *testing.T) {
	r := Record{"count": 3}
	assert.Empty(t, r.ID())
	assert.Empty(t, r.Region())
	assert.Empty(t, r.AccountID())
}

func TestRecordMatches(t *testing.T) {
	r := Record{
		"id":    "i-abc123",
		"state": "Running",
		"tags":  map[string]string{"Team": "Platform"},
		"ips":   []string{"10.0.0.1", "10.0.0.2"},
	}

	tests := []struct {
		name string
		term string
		want bool
	}{
		{"empty term matches", "", true},
		{"top level field", "abc123", true},
		{"case insensitive", "running", true},
		{"nested map value", "platform", true},
		{"list element", "10.0.0.2", true},
		{"no match", "terminated", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Matches(tt.term))
		})
	}
}

func TestAccountTargetAssumesRole(t *testing.T) {
	assert.False(t, AccountTarget{AccountID: "111122223333"}.AssumesRole())
	assert.True(t, AccountTarget{
		AccountID: "444455556666",
		RoleARN:   "arn:aws:iam::444455556666:role/InventoryReadRole",
	}.AssumesRole())
}
