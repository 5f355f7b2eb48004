package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"coordworker/src/model"
)

func TestDecodeRecordPadsShortRows(t *testing.T) {
	r := DecodeRecord([]string{"CT-001", "Mac Worker"}, 5)

	assert.Equal(t, "CT-001", r.ID)
	assert.Equal(t, "Mac Worker", r.Owner)
	assert.Equal(t, "", r.Status)
	assert.Equal(t, "", r.Notes)
	assert.Equal(t, 5, r.RowIndex)
}

func TestDecodeRecordIgnoresExtraCells(t *testing.T) {
	row := make([]string, NumColumns+3)
	row[ColID] = "CT-002"
	row[NumColumns] = "stray"

	r := DecodeRecord(row, 2)
	assert.Equal(t, "CT-002", r.ID)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	orig := model.TaskRecord{
		ID:             "CT-013",
		Owner:          "Server Worker",
		Category:       "Script",
		Priority:       "High",
		Status:         model.StatusInProgress,
		Description:    "restart mqtt bridge",
		ExpectedOutput: "bridge up",
		Dependencies:   "CT-012",
		CreatedAt:      "2026-08-29 09:00:00",
		CompletedAt:    "",
		Notes:          "claimed by run abc",
		RowIndex:       4,
	}

	decoded := DecodeRecord(EncodeRecord(orig), 4)
	assert.Equal(t, orig, decoded)
}

func TestIsBlankRow(t *testing.T) {
	assert.True(t, IsBlankRow(nil))
	assert.True(t, IsBlankRow([]string{"", "", ""}))
	assert.False(t, IsBlankRow([]string{"", "x"}))
}

func TestIsHeaderRow(t *testing.T) {
	assert.True(t, IsHeaderRow(Header))
	assert.False(t, IsHeaderRow([]string{"CT-001"}))
	assert.False(t, IsHeaderRow(nil))
}
