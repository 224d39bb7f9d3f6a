package domain

// Mimetype sentinels the manifest projector dispatches on.
const (
	MimeDirectory = "application/directory"
	MimePlainText = "text/plain"
)

// Manifest is a build's declared artifact file tree.
type Manifest struct {
	Tree       []ManifestNode `json:"tree"`
	IndexLinks any            `json:"index_links,omitempty"`
}

// ManifestNode is one file or directory in a manifest tree.
type ManifestNode struct {
	Name     string         `json:"name"`
	Mimetype string         `json:"mimetype"`
	Children []ManifestNode `json:"children,omitempty"`
}

// IsDirectory reports whether the node is a directory by mimetype. This is
// the projector's notion of a directory; the flattener instead treats any
// node with children as one.
func (n ManifestNode) IsDirectory() bool {
	return n.Mimetype == MimeDirectory
}

// PathIndex maps a leaf's full path (separator-joined from the root) to the
// leaf node itself. Directories never appear as keys.
type PathIndex map[string]*ManifestNode
