package probe

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestVerifyOrganization(t *testing.T) {
	hist := Selection{Status: "ok", Series: []Point{
		{Quarter: "2023-01-01", Label: "Q1 2023", Value: 12},
		{Quarter: "2023-04-01", Label: "Q2 2023", Value: 8},
	}}
	breakdown := Selection{
		Status: "ok",
		Series: []Point{
			{IssueType: "Climate", Quarter: "2023-01-01", Label: "Q1 2023", Value: 4},
			{IssueType: "Housing", Quarter: "2023-01-01", Label: "Q1 2023", Value: 8},
			{IssueType: "Climate", Quarter: "2023-04-01", Label: "Q2 2023", Value: 8},
		},
		Trend: []Point{
			{Quarter: "2023-01-01", Label: "Q1 2023", Value: 3.1748021039363987},
			{Quarter: "2023-04-01", Label: "Q2 2023", Value: 8},
		},
	}
	trend := []Point{
		{Organization: "Acme", Quarter: "2023-01-01", Label: "Q1 2023", Value: 3.1748021039363987},
		{Organization: "Acme", Quarter: "2023-04-01", Label: "Q2 2023", Value: 8},
	}

	Convey("Consistent views have no problems", t, func() {
		So(verifyOrganization("Acme", hist, breakdown, trend), ShouldBeEmpty)
	})

	Convey("A histogram that disagrees with the breakdown sum is reported", t, func() {
		bad := Selection{Status: "ok", Series: []Point{
			{Quarter: "2023-01-01", Label: "Q1 2023", Value: 13},
			{Quarter: "2023-04-01", Label: "Q2 2023", Value: 8},
		}}
		problems := verifyOrganization("Acme", bad, breakdown, trend)
		So(problems, ShouldHaveLength, 1)
		So(problems[0], ShouldContainSubstring, "2023-01-01")
	})

	Convey("A quarter missing from the breakdown is reported", t, func() {
		short := breakdown
		short.Series = breakdown.Series[:2]
		problems := verifyOrganization("Acme", hist, short, trend)
		So(problems, ShouldContain, "Acme: histogram has 2 quarters, breakdown has 1")
		So(problems, ShouldContain, "Acme: quarter 2023-04-01 missing from breakdown")
	})

	Convey("A trend that disagrees with the breakdown trend is reported", t, func() {
		off := []Point{
			{Quarter: "2023-01-01", Label: "Q1 2023", Value: 3},
			{Quarter: "2023-04-01", Label: "Q2 2023", Value: 8},
		}
		So(verifyOrganization("Acme", hist, breakdown, off), ShouldHaveLength, 1)
	})

	Convey("A quarter that is not a quarter start is reported", t, func() {
		odd := Selection{Status: "ok", Series: []Point{
			{Quarter: "2023-02-01", Label: "Q1 2023", Value: 12},
			hist.Series[1],
		}}
		problems := verifyOrganization("Acme", odd, breakdown, trend)
		So(problems, ShouldNotBeEmpty)
		So(problems[0], ShouldContainSubstring, "invalid quarter label")
	})

	Convey("A label that does not match its quarter is reported", t, func() {
		mislabelled := Selection{Status: "ok", Series: []Point{
			{Quarter: "2023-01-01", Label: "Q2 2023", Value: 12},
			hist.Series[1],
		}}
		problems := verifyOrganization("Acme", mislabelled, breakdown, trend)
		So(problems, ShouldHaveLength, 1)
		So(problems[0], ShouldEqual, `Acme: quarter 2023-01-01 labelled "Q2 2023", want "Q1 2023"`)
	})

	Convey("Out-of-order quarters are reported", t, func() {
		swapped := Selection{Status: "ok", Series: []Point{hist.Series[1], hist.Series[0]}}
		problems := verifyOrganization("Acme", swapped, breakdown, trend)
		So(problems, ShouldHaveLength, 1)
		So(problems[0], ShouldContainSubstring, "out of order")
	})
}

func TestApproxEqual(t *testing.T) {
	tests := []struct {
		a, b float64
		want bool
	}{
		{1, 1, true},
		{0.1 + 0.2, 0.3, true},
		{1e12, 1e12 + 1e-1, true},
		{1, 1.001, false},
		{0, 1e-6, false},
	}
	for _, tt := range tests {
		if got := approxEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("approxEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
