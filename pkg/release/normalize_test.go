package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"The Matrix", "matrix"},
		{"Léon: The Professional", "leon professional"},
		{"Rocky II", "rocky 2"},
		{"I Robot", "i robot"},
		{"Tom & Jerry", "tom and jerry"},
		{"Spider-Man", "spider man"},
		{"Ocean's Eleven", "oceans eleven"},
		{"  Extra   Spaces  ", "extra spaces"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitle(tt.input))
		})
	}
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "South Park", DisplayTitle("south park"))
	assert.Equal(t, "South Park", DisplayTitle("SOUTH PARK"))
	assert.Equal(t, "iCarly", DisplayTitle("iCarly"))
	assert.Equal(t, "NCIS Los Angeles", DisplayTitle("NCIS  Los Angeles"))
}

func TestMatchTitle(t *testing.T) {
	t.Run("exact", func(t *testing.T) {
		r := MatchTitle("South Park", []string{"Southland", "South Park"})
		assert.Equal(t, "South Park", r.Title)
		assert.Equal(t, ConfidenceHigh, r.Confidence)
	})

	t.Run("article and case differences", func(t *testing.T) {
		r := MatchTitle("the office", []string{"The Office"})
		assert.Equal(t, "The Office", r.Title)
		assert.Equal(t, ConfidenceHigh, r.Confidence)
	})

	t.Run("sequence numbers", func(t *testing.T) {
		r := MatchTitle("Alien 3", []string{"Alien", "Alien 3"})
		assert.Equal(t, "Alien 3", r.Title)
	})

	t.Run("no candidates", func(t *testing.T) {
		r := MatchTitle("Anything", nil)
		assert.Empty(t, r.Title)
		assert.Equal(t, ConfidenceNone, r.Confidence)
	})

	t.Run("unrelated", func(t *testing.T) {
		r := MatchTitle("Zzyzx", []string{"Abcdef"})
		assert.Empty(t, r.Title)
		assert.Equal(t, "none", r.Confidence.String())
	})
}
