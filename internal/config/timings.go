package config

import "time"

// Durations is the parsed form of TimingsConfig.
type Durations struct {
	Initialize     time.Duration
	Architecture   time.Duration
	Scan           time.Duration
	GapAnalysis    time.Duration
	Fragment       time.Duration
	ToolActivation time.Duration
	Assimilate     time.Duration
	Line           time.Duration
	Correction     time.Duration
	Package        time.Duration
	Intent         time.Duration
}

// GetDurations parses the timings section, falling back to the
// default interval for any unparseable value.
func (c *Config) GetDurations() Durations {
	t := c.Timings
	return Durations{
		Initialize:     parseDuration(t.Initialize, time.Second),
		Architecture:   parseDuration(t.Architecture, 1500*time.Millisecond),
		Scan:           parseDuration(t.Scan, 800*time.Millisecond),
		GapAnalysis:    parseDuration(t.GapAnalysis, time.Second),
		Fragment:       parseDuration(t.Fragment, 500*time.Millisecond),
		ToolActivation: parseDuration(t.ToolActivation, 2*time.Second),
		Assimilate:     parseDuration(t.Assimilate, 1500*time.Millisecond),
		Line:           parseDuration(t.Line, 200*time.Millisecond),
		Correction:     parseDuration(t.Correction, 300*time.Millisecond),
		Package:        parseDuration(t.Package, 2*time.Second),
		Intent:         parseDuration(t.Intent, 750*time.Millisecond),
	}
}
