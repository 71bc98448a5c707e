package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPrivacyLevelProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("levels in 0-100 are valid", prop.ForAll(
		func(n int) bool {
			return PrivacyLevel(n).Valid()
		},
		gen.IntRange(0, 100),
	))

	properties.Property("levels outside 0-100 are invalid", prop.ForAll(
		func(n int) bool {
			if n >= 0 && n <= 100 {
				return true
			}
			return !PrivacyLevel(n).Valid()
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}
