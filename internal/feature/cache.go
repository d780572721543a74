// SPDX-License-Identifier: MIT
package feature

// Track is one analyzed feature lane: FrameCount frames of Channels values
// each, flattened frame-major into Data (len(Data) == FrameCount*Channels).
//
// Tracks are immutable once produced. Re-analysis builds a new Track, never
// mutates one in place, so pointer identity doubles as a change signal for
// memoized consumers.
type Track struct {
	Key               string    // Canonical composite key (feature + profile).
	CalculatorID      string    // Registry id of the producing calculator.
	Version           int       // Calculator version at analysis time.
	FrameCount        int       // Number of analysis frames.
	Channels          int       // Values per frame.
	HopTicks          float64   // Frame spacing in canonical ticks.
	HopSeconds        float64   // Frame spacing in seconds.
	StartTimeSec      float64   // Time of frame 0 relative to the source start.
	Format            string    // Payload format tag ("scalar", "peaks", "bands").
	Data              []float64 // Flat frame-major value buffer.
	ChannelAliases    []string  // Optional names per channel ("left", "min", ...).
	ChannelLayout     string    // Optional layout tag ("mono", "stereo").
	AnalysisProfileID string    // Profile this track was computed under.
}

// Profile describes one analysis configuration a cache was computed under.
type Profile struct {
	ID         string             `json:"id"`
	Name       string             `json:"name,omitempty"`
	WindowSize int                `json:"windowSize"`
	HopSize    int                `json:"hopSize"`
	Params     map[string]float64 `json:"params,omitempty"`
}

// AnalysisParams records global analysis bookkeeping for a cache, most
// importantly which calculator versions produced its tracks.
type AnalysisParams struct {
	WindowSize         int
	HopSize            int
	SampleRate         float64
	CalculatorVersions map[string]int
}

// Cache is the full set of analyzed feature tracks for one audio source.
// Owned by the timeline store; replaced (never mutated) on update so that
// concurrent readers and memoized consumers stay safe.
type Cache struct {
	Version          int
	AudioSourceID    string
	HopTicks         float64
	HopSeconds       float64
	StartTimeSec     float64
	FrameCount       int
	Params           AnalysisParams
	Profiles         map[string]Profile
	DefaultProfileID string
	Tracks           map[string]*Track
	ChannelAliases   []string
}

// EndTimeSec returns the time just past the last analyzed frame.
func (c *Cache) EndTimeSec() float64 {
	return c.StartTimeSec + float64(c.FrameCount)*c.HopSeconds
}

// MergeCaches reconciles an existing cache with incoming analysis results.
//
// With no existing cache the incoming one is adopted as-is, its track map
// normalized to canonical keys. Otherwise scalar fields prefer the incoming
// value when set, Version takes the max of both (a stale result racing a
// newer cache must not roll the version back), incoming tracks replace
// existing ones atomically per composite key, and the CalculatorVersions and
// Profiles maps are unioned field-wise.
//
// Neither input is mutated; the result is a fresh object graph. Callers
// depend on that for reference-identity change detection.
func MergeCaches(existing, incoming *Cache) *Cache {
	if incoming == nil {
		return existing
	}
	if existing == nil {
		out := *incoming
		out.Tracks = NormalizeTrackMap(incoming.Tracks, incoming.DefaultProfileID)
		out.Profiles = copyProfiles(incoming.Profiles)
		out.Params.CalculatorVersions = copyVersions(incoming.Params.CalculatorVersions)
		return &out
	}

	out := *existing

	out.Version = max(existing.Version, incoming.Version)
	if incoming.AudioSourceID != "" {
		out.AudioSourceID = incoming.AudioSourceID
	}
	if incoming.HopTicks > 0 {
		out.HopTicks = incoming.HopTicks
	}
	if incoming.HopSeconds > 0 {
		out.HopSeconds = incoming.HopSeconds
	}
	if incoming.StartTimeSec != 0 {
		out.StartTimeSec = incoming.StartTimeSec
	}
	if incoming.FrameCount > 0 {
		out.FrameCount = incoming.FrameCount
	}
	if incoming.DefaultProfileID != "" {
		out.DefaultProfileID = incoming.DefaultProfileID
	}
	if len(incoming.ChannelAliases) > 0 {
		out.ChannelAliases = incoming.ChannelAliases
	}
	if incoming.Params.WindowSize > 0 {
		out.Params.WindowSize = incoming.Params.WindowSize
	}
	if incoming.Params.HopSize > 0 {
		out.Params.HopSize = incoming.Params.HopSize
	}
	if incoming.Params.SampleRate > 0 {
		out.Params.SampleRate = incoming.Params.SampleRate
	}

	// Key-wise union; an incoming track replaces the existing entry under
	// the same composite key wholesale. No field-level merging of tracks.
	merged := NormalizeTrackMap(existing.Tracks, existing.DefaultProfileID)
	for key, tr := range NormalizeTrackMap(incoming.Tracks, incoming.DefaultProfileID) {
		merged[key] = tr
	}
	out.Tracks = merged

	versions := copyVersions(existing.Params.CalculatorVersions)
	for id, v := range incoming.Params.CalculatorVersions {
		if versions == nil {
			versions = make(map[string]int)
		}
		versions[id] = v
	}
	out.Params.CalculatorVersions = versions

	profiles := copyProfiles(existing.Profiles)
	for id, p := range incoming.Profiles {
		if profiles == nil {
			profiles = make(map[string]Profile)
		}
		profiles[id] = p
	}
	out.Profiles = profiles

	return &out
}

func copyVersions(src map[string]int) map[string]int {
	if src == nil {
		return nil
	}
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func copyProfiles(src map[string]Profile) map[string]Profile {
	if src == nil {
		return nil
	}
	out := make(map[string]Profile, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
