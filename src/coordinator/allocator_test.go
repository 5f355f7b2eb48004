package coordinator

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"coordworker/src/model"
)

func TestNextID(t *testing.T) {
	tests := []struct {
		name   string
		ids    []string
		prefix string
		want   string
	}{
		{"empty set starts at 001", nil, "CT", "CT-001"},
		{"gap does not get reused", []string{"CT-001", "CT-002", "CT-004"}, "CT", "CT-005"},
		{"other prefixes ignored", []string{"CT-001", "MQTT-009", "CT-002"}, "CT", "CT-003"},
		{"malformed suffixes ignored", []string{"CT-abc", "CT-", "CT-002"}, "CT", "CT-003"},
		{"blank ids ignored", []string{"", "CT-007"}, "CT", "CT-008"},
		{"rolls past three digits", []string{"CT-999"}, "CT", "CT-1000"},
		{"four digit suffixes", []string{"CT-1000"}, "CT", "CT-1001"},
		{"prefix is not a substring match", []string{"XCT-005"}, "CT", "CT-001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextID(tt.ids, tt.prefix))
		})
	}
}

func TestNextIDIsStrictlyGreater(t *testing.T) {
	ids := []string{"CT-003", "CT-011", "CT-002"}
	got := NextID(ids, "CT")

	suffix, err := strconv.Atoi(strings.TrimPrefix(got, "CT-"))
	assert.NoError(t, err)
	for _, id := range ids {
		n, _ := strconv.Atoi(strings.TrimPrefix(id, "CT-"))
		assert.Greater(t, suffix, n, "new id must exceed %s", id)
	}
}

func TestNextIDIsPure(t *testing.T) {
	ids := []string{"CT-001", "CT-005"}
	first := NextID(ids, "CT")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, NextID(ids, "CT"))
	}
	assert.Equal(t, []string{"CT-001", "CT-005"}, ids)
}

func TestNextIDForRecords(t *testing.T) {
	records := []model.TaskRecord{{ID: "CT-002"}, {ID: "CT-009"}, {ID: "other"}}
	assert.Equal(t, "CT-010", NextIDForRecords(records, "CT"))
}

func TestNextIDZeroPadding(t *testing.T) {
	for i := 1; i < 10; i++ {
		ids := []string{fmt.Sprintf("CT-%03d", i)}
		assert.Equal(t, fmt.Sprintf("CT-%03d", i+1), NextID(ids, "CT"))
	}
}
