// Package provider holds the types shared by every usage data source:
// raw readings, the error taxonomy, fetch-window chunking strategies and
// transient-failure retry.
package provider

// RawReading is one provider-native usage record. Exactly one of
// LocalTimestamp or Unix is set: the web portal reports civil date/time in
// the account's timezone, the cloud API reports epoch seconds directly.
type RawReading struct {
	// Channel discriminates sub-streams: a meter register ("E1", "E2") or a
	// smart-plug nickname.
	Channel string
	Value   float64
	// Unit of Value, "kWh" or "Wh".
	Unit string
	// LocalTimestamp is "2006-01-02 15:04:05" in the provider's civil time.
	LocalTimestamp string
	// Unix is the absolute epoch-second timestamp when the provider reports
	// epoch form.
	Unix int64
}

// Read units accepted by the normalizer.
const (
	UnitKWh = "kWh"
	UnitWh  = "Wh"
)
