package artifacts

import (
	"strings"

	"github.com/jonathan/brd-pipeline/internal/types"
)

// BuildCodeTree converts a flat folder listing into a tree rooted at the
// skeleton's root folder. Folder paths are split on "/" and intermediate
// folders are created as needed; folder order follows first appearance.
func BuildCodeTree(skel types.CodeSkeleton) []types.CodeNode {
	rootName := strings.Trim(strings.TrimSpace(skel.RootFolder), "/")
	if rootName == "" {
		rootName = "project"
	}
	root := &treeNode{node: types.CodeNode{Name: rootName, Kind: types.CodeNodeFolder, Path: rootName}}

	for _, folder := range skel.Folders {
		dir := root
		for _, part := range strings.Split(strings.Trim(folder.Path, "/"), "/") {
			part = strings.TrimSpace(part)
			if part == "" || part == "." || (dir == root && part == rootName) {
				continue
			}
			dir = dir.folder(part)
		}
		for _, f := range folder.Files {
			dir.children = append(dir.children, &treeNode{node: types.CodeNode{
				Name:    f.Name,
				Kind:    types.CodeNodeFile,
				Path:    dir.node.Path + "/" + f.Name,
				Content: f.Content,
			}})
		}
	}
	return []types.CodeNode{root.build()}
}

type treeNode struct {
	node     types.CodeNode
	children []*treeNode
}

func (t *treeNode) folder(name string) *treeNode {
	for _, c := range t.children {
		if c.node.Kind == types.CodeNodeFolder && c.node.Name == name {
			return c
		}
	}
	child := &treeNode{node: types.CodeNode{Name: name, Kind: types.CodeNodeFolder, Path: t.node.Path + "/" + name}}
	t.children = append(t.children, child)
	return child
}

func (t *treeNode) build() types.CodeNode {
	n := t.node
	for _, c := range t.children {
		n.Children = append(n.Children, c.build())
	}
	return n
}
