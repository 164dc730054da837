package regression

import (
	"encoding/xml"
	"fmt"
)

// junitTestSuite and junitTestCase mirror the subset of the JUnit XML schema
// that CI dashboards actually read: suite-level counts plus one testcase per
// question, with a <failure> child when it didn't pass. This is the one
// stdlib-only corner of the pipeline — JUnit's schema has no natural owner
// among the warehouse/messaging/storage libraries the rest of the module
// draws on, and encoding/xml is the same tool the teacher itself reaches for
// whenever it needs to emit a fixed, well-known XML shape.
type junitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	TimeMS    int64           `xml:"time,attr"`
	TestCases []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string        `xml:"name,attr"`
	TimeMS  int64         `xml:"time,attr"`
	Failure *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

// JUnitXML renders a Report as a JUnit test-suite document suitable for a CI
// test-results panel.
func JUnitXML(suiteName string, report *Report) ([]byte, error) {
	suite := junitTestSuite{
		Name:     suiteName,
		Tests:    report.QuestionCount,
		Failures: report.FailCount,
		TimeMS:   report.TotalLatencyMS,
	}
	for _, r := range report.Results {
		tc := junitTestCase{Name: r.Question, TimeMS: r.LatencyMS}
		if !r.Passed {
			tc.Failure = &junitFailure{
				Message: fmt.Sprintf("%d expectation(s) failed", len(r.FailureReasons)),
				Text:    joinReasons(r.FailureReasons),
			}
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	out, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal junit report: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "\n"
		}
		out += r
	}
	return out
}
