package metrics

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/mstoykov/atlas"
)

// TagSet is an immutable-per-branch set of key/value tags backed by an
// atlas trie, so that branching off a child set (adding VU- or
// request-local tags on top of scenario-wide ones) is O(1) and never
// mutates the parent.
type TagSet struct {
	tags *atlas.Node
}

// NewTagSet returns an empty tag set.
func NewTagSet() *TagSet {
	return &TagSet{tags: atlas.New()}
}

// AddTag adds or overwrites a single tag in place.
func (ts *TagSet) AddTag(key, value string) {
	ts.tags = ts.tags.AddLink(key, value)
}

// BranchOut returns a new TagSet that starts from ts's tags but can be
// mutated independently.
func (ts *TagSet) BranchOut() *TagSet {
	return &TagSet{tags: ts.tags}
}

// Map flattens the tag set into a plain map.
func (ts *TagSet) Map() map[string]string {
	return ts.tags.Map()
}

// Node exposes the backing atlas node, used as the canonical, hashable key
// for a metric series in the registry's handle map.
func (ts *TagSet) Node() *atlas.Node {
	return ts.tags
}

// SampleTags is the resolved, canonical tag set attached to a recorded
// Sample. It shares the same atlas-backed representation as TagSet but is
// treated as read-only once produced by Registry.ResolveTags.
type SampleTags struct {
	tags *atlas.Node
}

// CloneTags flattens the sample's tags into a plain map.
func (st *SampleTags) CloneTags() map[string]string {
	if st == nil || st.tags == nil {
		return map[string]string{}
	}
	return st.tags.Map()
}

// TagSetFromSampleTags branches a mutable TagSet off of an already-resolved
// SampleTags value.
func TagSetFromSampleTags(st *SampleTags) *TagSet {
	if st == nil || st.tags == nil {
		return NewTagSet()
	}
	return &TagSet{tags: st.tags}
}

// EnabledTags is the set of system tag names a user has opted into
// attaching to every sample (e.g. "method", "status"); membership, not
// insertion order, is what matters, so it (de)serializes as a sorted array.
type EnabledTags map[string]bool

// MarshalJSON implements json.Marshaler, producing a sorted array so output
// is deterministic across runs.
func (et EnabledTags) MarshalJSON() ([]byte, error) {
	tags := make([]string, 0, len(et))
	for tag := range et {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return json.Marshal(tags)
}

// UnmarshalJSON implements json.Unmarshaler.
func (et *EnabledTags) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	out := make(EnabledTags, len(tags))
	for _, tag := range tags {
		out[tag] = true
	}
	*et = out
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting a
// comma-separated list as seen in environment variables and CLI flags.
// Empty entries (from doubled or trailing commas) are skipped.
func (et *EnabledTags) UnmarshalText(data []byte) error {
	out := make(EnabledTags)
	for _, part := range bytes.Split(data, []byte(",")) {
		tag := strings.TrimSpace(string(part))
		if tag == "" {
			continue
		}
		out[tag] = true
	}
	*et = out
	return nil
}
