package manifest

import (
	"strings"

	"github.com/zuulview/zuulview/pkg/domain"
)

// RenderContext carries the host/build context renderers may need when
// producing a fragment. LogURL has at most one trailing separator stripped
// before any renderer sees it, so renderer-built URLs never double it.
type RenderContext struct {
	Tenant string
	Build  *domain.Build
	LogURL string
}

// Renderer produces a presentation fragment for a single leaf. The two
// renderers passed to Project are interchangeable capabilities; the
// projector picks one per leaf based on mimetype alone and delegates all
// formatting detail.
type Renderer func(rc RenderContext, path, name string, node *domain.ManifestNode) any

// ViewNode is a presentation-ready manifest entry. Directory nodes carry
// their projected children and a display name with a trailing separator;
// leaf nodes carry the fragment their renderer produced.
type ViewNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Mimetype string     `json:"mimetype"`
	Fragment any        `json:"fragment,omitempty"`
	Children []ViewNode `json:"children,omitempty"`
}

// Project walks a manifest tree and produces its view tree. A node is a
// directory solely when its mimetype is the directory sentinel; plain-text
// leaves go through textRenderer, every other leaf through defaultRenderer.
func Project(tree []domain.ManifestNode, path string, rc RenderContext, textRenderer, defaultRenderer Renderer) []ViewNode {
	rc.LogURL = strings.TrimSuffix(rc.LogURL, Separator)
	return project(tree, path, rc, textRenderer, defaultRenderer)
}

func project(tree []domain.ManifestNode, path string, rc RenderContext, textRenderer, defaultRenderer Renderer) []ViewNode {
	out := make([]ViewNode, 0, len(tree))
	for i := range tree {
		node := &tree[i]
		if node.IsDirectory() {
			out = append(out, ViewNode{
				Name:     node.Name + Separator,
				Path:     path + Separator + node.Name,
				Mimetype: node.Mimetype,
				Children: project(node.Children, path+Separator+node.Name, rc, textRenderer, defaultRenderer),
			})
			continue
		}
		render := defaultRenderer
		if node.Mimetype == domain.MimePlainText {
			render = textRenderer
		}
		out = append(out, ViewNode{
			Name:     node.Name,
			Path:     path + Separator + node.Name,
			Mimetype: node.Mimetype,
			Fragment: render(rc, path, node.Name, node),
		})
	}
	return out
}
