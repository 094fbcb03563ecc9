package dispatch

// band maps a score floor to a priority label and glyph marker.
// Policy data, not control flow: the first band whose Min the score
// reaches wins.
type band struct {
	Min    float64
	Label  string
	Marker string
}

var bands = []band{
	{Min: 9.0, Label: "CRITICAL", Marker: "🚨"},
	{Min: 8.0, Label: "HIGH", Marker: "⚠️"},
	{Min: 0, Label: "STANDARD", Marker: "📰"},
}

func bandFor(score float64) band {
	for _, b := range bands {
		if score >= b.Min {
			return b
		}
	}
	return bands[len(bands)-1]
}
