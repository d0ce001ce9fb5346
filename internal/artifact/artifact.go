package artifact

import "strings"

// Origin tells where a code artifact came from.
type Origin string

const (
	OriginGenerated Origin = "generated"
	OriginCorrected Origin = "corrected"
	OriginUser      Origin = "user"
)

// CodeArtifact is one immutable version of simulation source code within a
// session. A new revision supersedes the previous one; revisions are never
// mutated in place.
type CodeArtifact struct {
	Source   string `json:"source"`
	Origin   Origin `json:"origin"`
	Revision int    `json:"revision"`
}

// New returns the first artifact of a session (revision 0).
func New(source string, origin Origin) CodeArtifact {
	return CodeArtifact{Source: source, Origin: origin, Revision: 0}
}

// Next returns a successor artifact with the revision bumped by one.
func (a CodeArtifact) Next(source string, origin Origin) CodeArtifact {
	return CodeArtifact{Source: source, Origin: origin, Revision: a.Revision + 1}
}

// Empty reports whether the artifact holds no meaningful source.
func (a CodeArtifact) Empty() bool {
	return strings.TrimSpace(a.Source) == ""
}
