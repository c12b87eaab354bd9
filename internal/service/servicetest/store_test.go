package servicetest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/course-marketplace/internal/model"
)

func TestApprovedRating(t *testing.T) {
	rating, n := approvedRating(nil)
	assert.Zero(t, rating)
	assert.Zero(t, n)

	rating, n = approvedRating([]model.Review{
		{Rating: 5, IsApproved: true},
		{Rating: 4, IsApproved: true},
		{Rating: 4, IsApproved: true},
		{Rating: 1, IsApproved: false},
	})
	assert.Equal(t, 4.3, rating)
	assert.Equal(t, 3, n)

	rating, n = approvedRating([]model.Review{{Rating: 2}})
	assert.Zero(t, rating)
	assert.Zero(t, n)
}
