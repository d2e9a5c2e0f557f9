package migrate

import (
	"strings"
	"testing"
)

func TestRun_EmptyDSN(t *testing.T) {
	err := Run("", "up")
	if err == nil {
		t.Fatal("Run with empty DSN should fail")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error should mention DATABASE_URL, got %q", err)
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	cases := []string{"", "sideways", "UP", "Down"}
	for _, direction := range cases {
		t.Run(direction, func(t *testing.T) {
			err := Run("postgres://localhost/auth", direction)
			if err == nil {
				t.Fatal("Run with invalid direction should fail")
			}
			if !strings.Contains(err.Error(), "direction") {
				t.Errorf("error should name the direction, got %q", err)
			}
		})
	}
}
