package testutil

import "testing"

// Given, When and Then name nested subtests after a scenario step, so a
// failure reads as "Given a degraded store/When probing health/Then 503".
var (
	Given = step("Given")
	When  = step("When")
	Then  = step("Then")
)

func step(keyword string) func(t *testing.T, desc string, fn func(t *testing.T)) {
	return func(t *testing.T, desc string, fn func(t *testing.T)) {
		t.Helper()
		t.Run(keyword+" "+desc, fn)
	}
}
