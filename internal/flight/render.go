package flight

import (
	"fmt"
	"strings"
)

// Render builds the HTML reply for calculated legs, one block per leg.
func Render(results []Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, renderLeg(r))
	}
	return strings.Join(blocks, "\n\n")
}

func renderLeg(r Result) string {
	var b strings.Builder
	b.WriteString("✅ <b>FLIGHT INFO</b> ✅\n")
	if len(r.Calc.Warnings) > 0 {
		b.WriteString("<b>")
		for _, w := range r.Calc.Warnings {
			b.WriteString(w)
			b.WriteByte('\n')
		}
		b.WriteString("</b>")
	}

	aircraft := r.Aircraft.Name
	if aircraft == "" {
		aircraft = r.Leg.Aircraft
	}

	fmt.Fprintf(&b, " ┌ %s ➡️ %s\n", r.Departure, r.Arrival)
	fmt.Fprintf(&b, " ├ <b>Passengers</b>: %d\n", r.Leg.Pax)
	fmt.Fprintf(&b, " ├ <b>Aircraft</b>: %s\n", aircraft)
	fmt.Fprintf(&b, " ├ <b>Flight time</b>: %s\n", r.Calc.AirwayTime())
	fmt.Fprintf(&b, " └ <b>Flight distance</b>: %dkm", int(r.Calc.AirwayDistance))
	return b.String()
}
