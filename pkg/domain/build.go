package domain

import (
	"encoding"
	"net/url"
	"strings"
)

// ArtifactTypeManifest marks the artifact whose document describes the
// build's downloadable file tree.
const ArtifactTypeManifest = "zuul_manifest"

// Build is a single finished (or running) job execution as reported by the
// Zuul API. It is immutable once fetched; a re-fetch replaces it wholesale.
type Build struct {
	UUID      string     `json:"uuid"`
	JobName   string     `json:"job_name"`
	Result    string     `json:"result"`
	Voting    bool       `json:"voting"`
	Held      bool       `json:"held,omitempty"`
	Project   string     `json:"project"`
	Branch    string     `json:"branch"`
	Pipeline  string     `json:"pipeline"`
	Ref       string     `json:"ref"`
	RefURL    string     `json:"ref_url,omitempty"`
	NewRev    string     `json:"newrev,omitempty"`
	StartTime string     `json:"start_time,omitempty"`
	EndTime   string     `json:"end_time,omitempty"`
	Duration  float64    `json:"duration,omitempty"`
	LogURL    string     `json:"log_url,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	EventID   string     `json:"event_id,omitempty"`
	Buildset  *BuildsetRef `json:"buildset,omitempty"`
}

// BuildsetRef is the buildset summary embedded in a build record.
type BuildsetRef struct {
	UUID string `json:"uuid"`
}

// Buildset groups the builds triggered by one change/ref combination.
type Buildset struct {
	UUID    string  `json:"uuid"`
	Result  string  `json:"result"`
	Message string  `json:"message,omitempty"`
	Project string  `json:"project"`
	Branch  string  `json:"branch"`
	Ref     string  `json:"ref"`
	Builds  []Build `json:"builds,omitempty"`
}

// Artifact is one build output record. Metadata is freeform; the only key
// this layer interprets is "type".
type Artifact struct {
	Name     string         `json:"name"`
	URL      string         `json:"url"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MetadataType returns the artifact's declared type, or "" when the artifact
// carries no metadata or a non-string type.
func (a Artifact) MetadataType() string {
	if a.Metadata == nil {
		return ""
	}
	t, _ := a.Metadata["type"].(string)
	return t
}

// LogBaseURL returns the build's log URL with at most one trailing slash
// stripped, so URLs assembled from it never contain a doubled separator.
func (b *Build) LogBaseURL() string {
	return strings.TrimSuffix(b.LogURL, "/")
}

// ResolveArtifactURL resolves an artifact URL against the build's log URL
// base: relative URLs are joined to it, absolute URLs pass through. With no
// log URL the artifact URL is returned as-is.
func (b *Build) ResolveArtifactURL(a Artifact) string {
	if b.LogURL == "" {
		return a.URL
	}
	base := b.LogURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	bu, err := url.Parse(base)
	if err != nil {
		return a.URL
	}
	au, err := url.Parse(a.URL)
	if err != nil {
		return a.URL
	}
	return bu.ResolveReference(au).String()
}

// ManifestArtifact returns the first artifact declaring the manifest type,
// or nil when the build has none.
func (b *Build) ManifestArtifact() *Artifact {
	for i := range b.Artifacts {
		if b.Artifacts[i].MetadataType() == ArtifactTypeManifest {
			return &b.Artifacts[i]
		}
	}
	return nil
}

// Resource names one independently fetched piece of build information.
type Resource string

const (
	ResourceBuild    Resource = "build"
	ResourceBuildset Resource = "buildset"
	ResourceOutput   Resource = "output"
	ResourceManifest Resource = "manifest"
)

// ResourceState is the fetch lifecycle of a single resource.
type ResourceState string

const (
	StateIdle      ResourceState = "IDLE"
	StateRequested ResourceState = "REQUESTED"
	StateSucceeded ResourceState = "SUCCEEDED"
	StateFailed    ResourceState = "FAILED"
	// StateNotAvailable is a terminal non-error outcome: the resource
	// legitimately does not exist for this build (no log URL, no manifest
	// artifact). It must never be presented as a failure.
	StateNotAvailable ResourceState = "NOT_AVAILABLE"
)

var (
	_ encoding.BinaryMarshaler = Resource("")
	_ encoding.TextMarshaler   = Resource("")
	_ encoding.BinaryMarshaler = ResourceState("")
	_ encoding.TextMarshaler   = ResourceState("")
)

func (r Resource) MarshalBinary() ([]byte, error) { return []byte(string(r)), nil }
func (r Resource) MarshalText() ([]byte, error)   { return []byte(string(r)), nil }

func (s ResourceState) MarshalBinary() ([]byte, error) { return []byte(string(s)), nil }
func (s ResourceState) MarshalText() ([]byte, error)   { return []byte(string(s)), nil }

// Terminal reports whether the state concludes a fetch attempt.
func (s ResourceState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateNotAvailable
}
