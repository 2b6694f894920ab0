package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel_Matches(t *testing.T) {
	user := Label{ID: "Label_1", Name: "Jobs", Type: LabelTypeUser}
	assert.True(t, user.Matches("jobs"))
	assert.True(t, user.Matches(" JOBS "))
	assert.False(t, user.Matches("Job"))

	system := Label{ID: "SPAM", Name: "SPAM", Type: LabelTypeSystem}
	assert.True(t, system.Matches("SPAM"))
	assert.False(t, system.Matches("Spam"))

	// labels listed without a type behave like user labels
	assert.True(t, Label{Name: "Travel"}.Matches("travel"))
}
