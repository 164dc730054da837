package drift

import (
	"fmt"
	"strings"

	"ontoforge.dev/store"
)

// DetectView compares deployedYAML (the YAML the caller supplies for the
// version currently marked deployed) against the live exported semantic-view
// YAML. The comparison is byte-for-byte: neither side is normalized here or
// by Detector.RunView, so formatting-only differences also count. A
// non-byte-equal result is YAML_DIVERGED carrying a line-oriented diff; an
// identical pair yields no event.
func DetectView(viewFQN string, deployedYAML, liveYAML []byte) *Event {
	if string(liveYAML) == string(deployedYAML) {
		return nil
	}
	diff := lineDiff(string(deployedYAML), string(liveYAML))
	return &Event{
		Type: string(store.YAMLDiverged),
		Details: YAMLDivergedDetails{
			ViewFQN: viewFQN,
			Diff:    diff,
		},
	}
}

// lineDiff renders a minimal unified-style line diff: lines only in want are
// prefixed '-', lines only in got are prefixed '+', common lines are left
// unprefixed. It is deliberately simple — drift reporting needs a readable
// summary, not a minimal edit script.
func lineDiff(want, got string) string {
	wantLines := strings.Split(want, "\n")
	gotLines := strings.Split(got, "\n")

	wantSet := make(map[string]bool, len(wantLines))
	for _, l := range wantLines {
		wantSet[l] = true
	}
	gotSet := make(map[string]bool, len(gotLines))
	for _, l := range gotLines {
		gotSet[l] = true
	}

	var b strings.Builder
	for _, l := range wantLines {
		if !gotSet[l] {
			fmt.Fprintf(&b, "-%s\n", l)
		}
	}
	for _, l := range gotLines {
		if !wantSet[l] {
			fmt.Fprintf(&b, "+%s\n", l)
		}
	}
	return b.String()
}
