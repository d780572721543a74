// SPDX-License-Identifier: MIT
/*
Package feature holds per-audio-source caches of pre-computed analysis
frames (RMS, band energy, waveform peaks, ...) and the read paths over them.

A feature track is identified by a composite key: the feature key plus the
analysis profile it was computed under, joined by KeySeparator. Older caches
were keyed by the bare feature name; normalization rewrites those to the
composite form on read so the rest of the engine only ever sees canonical
keys.
*/
package feature

import "strings"

// KeySeparator joins a feature key and an analysis profile id.
const KeySeparator = "::"

// DefaultProfileID is assumed wherever a profile id is missing.
const DefaultProfileID = "default"

// BuildTrackKey returns the canonical composite key for a feature under a
// profile. An empty profile id resolves to DefaultProfileID.
func BuildTrackKey(featureKey, profileID string) string {
	if profileID == "" {
		profileID = DefaultProfileID
	}
	return featureKey + KeySeparator + profileID
}

// ParseTrackKey splits a composite key back into feature key and profile id.
// Keys without a profile suffix map to DefaultProfileID; an empty key yields
// an empty feature key and the default profile. Never fails.
func ParseTrackKey(key string) (featureKey, profileID string) {
	if key == "" {
		return "", DefaultProfileID
	}
	idx := strings.LastIndex(key, KeySeparator)
	if idx < 0 {
		return key, DefaultProfileID
	}
	featureKey = key[:idx]
	profileID = key[idx+len(KeySeparator):]
	if profileID == "" {
		profileID = DefaultProfileID
	}
	return featureKey, profileID
}

// NormalizeTrackEntry rewrites one (external key, track) pair to its
// canonical composite key and stamps the resolved profile id onto a copy of
// the track. The original track is not mutated.
//
// Profile resolution precedence, highest first: the track's own
// AnalysisProfileID, the profile embedded in the track's own Key, the
// profile embedded in the external map key, the caller's fallback, and
// finally DefaultProfileID.
func NormalizeTrackEntry(externalKey string, tr *Track, fallbackProfileID string) (string, *Track) {
	if tr == nil {
		fk, pid := ParseTrackKey(externalKey)
		if fallbackProfileID != "" && pid == DefaultProfileID && !strings.Contains(externalKey, KeySeparator) {
			pid = fallbackProfileID
		}
		return BuildTrackKey(fk, pid), nil
	}

	featureKey, externalProfile := ParseTrackKey(externalKey)
	if featureKey == "" {
		featureKey, _ = ParseTrackKey(tr.Key)
	}

	profileID := tr.AnalysisProfileID
	if profileID == "" && tr.Key != "" {
		if _, p := ParseTrackKey(tr.Key); strings.Contains(tr.Key, KeySeparator) {
			profileID = p
		}
	}
	if profileID == "" && strings.Contains(externalKey, KeySeparator) {
		profileID = externalProfile
	}
	if profileID == "" {
		profileID = fallbackProfileID
	}
	if profileID == "" {
		profileID = DefaultProfileID
	}

	canonical := BuildTrackKey(featureKey, profileID)
	out := *tr
	out.Key = canonical
	out.AnalysisProfileID = profileID
	return canonical, &out
}

// NormalizeTrackMap rewrites every entry of a track map to canonical
// composite keys. The input map is left untouched.
func NormalizeTrackMap(tracks map[string]*Track, fallbackProfileID string) map[string]*Track {
	out := make(map[string]*Track, len(tracks))
	for key, tr := range tracks {
		canonical, normalized := NormalizeTrackEntry(key, tr, fallbackProfileID)
		out[canonical] = normalized
	}
	return out
}

// ResolveOptions narrows ResolveTrack's candidate search.
type ResolveOptions struct {
	AnalysisProfileID string // Preferred profile for the lookup.
	FallbackProfileID string // Tried after the preferred profile.
}

// ResolveTrack finds the feature track for featureKey in the cache, trying
// an ordered list of key candidates: the exact input, the requested-profile
// composite, the composite under the profile parsed from the input, the
// cache's default profile, the global default profile, and the bare feature
// key. When nothing matches it returns the first candidate with a nil track,
// which signals "not yet analyzed" rather than an error.
func ResolveTrack(cache *Cache, featureKey string, opts ResolveOptions) (string, *Track) {
	if cache == nil {
		return BuildTrackKey(featureKey, opts.AnalysisProfileID), nil
	}

	parsedKey, parsedProfile := ParseTrackKey(featureKey)

	candidates := [7]string{
		featureKey,
		"",
		"",
		BuildTrackKey(parsedKey, parsedProfile),
		BuildTrackKey(parsedKey, cache.DefaultProfileID),
		BuildTrackKey(parsedKey, DefaultProfileID),
		parsedKey,
	}
	if opts.AnalysisProfileID != "" {
		candidates[1] = BuildTrackKey(parsedKey, opts.AnalysisProfileID)
	}
	if opts.FallbackProfileID != "" {
		candidates[2] = BuildTrackKey(parsedKey, opts.FallbackProfileID)
	}

	first := ""
	for _, key := range candidates {
		if key == "" {
			continue
		}
		if first == "" {
			first = key
		}
		if tr, ok := cache.Tracks[key]; ok && tr != nil {
			return key, tr
		}
	}
	return first, nil
}
