package handlers

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// buildCategoryTree links a flat category list into a forest in one pass
// keyed by id. A category is a root when it has no parent, names itself, or
// names a parent missing from the input. Members of a parent cycle that no
// root reaches are promoted to roots, so every input appears exactly once.
// Roots and children keep input order; promoted roots follow the others.
func buildCategoryTree(categories []models.Category) []*models.CategoryNode {
	nodes := make(map[primitive.ObjectID]*models.CategoryNode, len(categories))
	order := make([]*models.CategoryNode, 0, len(categories))
	for _, category := range categories {
		if _, dup := nodes[category.ID]; dup {
			continue
		}
		node := &models.CategoryNode{Category: category, Children: []*models.CategoryNode{}}
		nodes[category.ID] = node
		order = append(order, node)
	}

	parentOf := make(map[primitive.ObjectID]*models.CategoryNode, len(order))
	roots := make([]*models.CategoryNode, 0)
	for _, node := range order {
		parent := resolveParent(nodes, node)
		if parent == nil {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
		parentOf[node.ID] = parent
	}

	reached := make(map[primitive.ObjectID]struct{}, len(order))
	for _, root := range roots {
		markReached(root, reached)
	}
	if len(reached) == len(order) {
		return roots
	}

	for _, node := range order {
		if _, ok := reached[node.ID]; ok {
			continue
		}
		if parent := parentOf[node.ID]; parent != nil {
			parent.Children = removeNode(parent.Children, node)
			delete(parentOf, node.ID)
		}
		roots = append(roots, node)
		markReached(node, reached)
	}
	return roots
}

func resolveParent(nodes map[primitive.ObjectID]*models.CategoryNode, node *models.CategoryNode) *models.CategoryNode {
	if node.ParentID == nil || *node.ParentID == node.ID {
		return nil
	}
	return nodes[*node.ParentID]
}

func markReached(node *models.CategoryNode, reached map[primitive.ObjectID]struct{}) {
	if _, ok := reached[node.ID]; ok {
		return
	}
	reached[node.ID] = struct{}{}
	for _, child := range node.Children {
		markReached(child, reached)
	}
}

func removeNode(list []*models.CategoryNode, target *models.CategoryNode) []*models.CategoryNode {
	out := list[:0]
	for _, n := range list {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

// createsCycle reports whether giving id the parent parentID would make id
// its own ancestor.
func createsCycle(categories []models.Category, id, parentID primitive.ObjectID) bool {
	parents := make(map[primitive.ObjectID]primitive.ObjectID, len(categories))
	for _, c := range categories {
		if c.ParentID != nil {
			parents[c.ID] = *c.ParentID
		}
	}

	seen := map[primitive.ObjectID]struct{}{}
	current := parentID
	for {
		if current == id {
			return true
		}
		if _, ok := seen[current]; ok {
			return false
		}
		seen[current] = struct{}{}

		next, ok := parents[current]
		if !ok {
			return false
		}
		current = next
	}
}
