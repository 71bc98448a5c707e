package types

import (
	"testing"
)

func TestPrivacyLevelValid(t *testing.T) {
	cases := []struct {
		level PrivacyLevel
		want  bool
	}{
		{0, true},
		{50, true},
		{100, true},
		{-1, false},
		{101, false},
	}
	for _, c := range cases {
		if got := c.level.Valid(); got != c.want {
			t.Errorf("Expected Valid(%d) = %v, got %v", c.level, c.want, got)
		}
	}
}

func TestValidClusterCategory(t *testing.T) {
	for _, c := range []ClusterCategory{CategoryPersonal, CategoryProfessional, CategoryCreative} {
		if !ValidClusterCategory(c) {
			t.Errorf("Expected category %q to be valid", c)
		}
	}
	if ValidClusterCategory("financial") {
		t.Error("Expected unknown category to be invalid")
	}
	if ValidClusterCategory("") {
		t.Error("Expected empty category to be invalid")
	}
}

func TestValidTwinType(t *testing.T) {
	for _, tt := range []TwinType{TwinProfessional, TwinSocial, TwinDating, TwinPublic, TwinCustom} {
		if !ValidTwinType(tt) {
			t.Errorf("Expected twin type %q to be valid", tt)
		}
	}
	if ValidTwinType("anonymous") {
		t.Error("Expected unknown twin type to be invalid")
	}
}

func TestServiceErrorMessage(t *testing.T) {
	err := &ServiceError{Code: "NOT_FOUND", Message: "twin not found"}
	if err.Error() != "twin not found" {
		t.Errorf("Expected error message %q, got %q", "twin not found", err.Error())
	}
}
