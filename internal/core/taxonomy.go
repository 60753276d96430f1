package core

// Taxonomy is the provider's category hierarchy, fetched once per session
// and treated as read-only reference data.
type Taxonomy struct {
	categories []Category
	byID       map[string]Category
}

// NewTaxonomy builds a taxonomy from the provider's category list.
func NewTaxonomy(categories []Category) *Taxonomy {
	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	return &Taxonomy{categories: categories, byID: byID}
}

// Categories returns the full reference set in provider order.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// Lookup returns the category with the given id.
func (t *Taxonomy) Lookup(id string) (Category, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// Len returns the number of categories in the taxonomy.
func (t *Taxonomy) Len() int {
	return len(t.categories)
}

// Matches reports whether budgetCategoryID appears anywhere in the
// transaction's category path. Budgets may target a broad or narrow node of
// the hierarchy, so this is list containment, not leaf equality. The pager's
// category filter deliberately differs: it compares the leaf element only.
func Matches(budgetCategoryID string, path []string) bool {
	for _, node := range path {
		if node == budgetCategoryID {
			return true
		}
	}
	return false
}

// TopLevel returns the root element of a category path. The second return
// is false when the path is empty; such transactions are excluded from
// residual grouping.
func TopLevel(path []string) (string, bool) {
	if len(path) == 0 {
		return "", false
	}
	return path[0], true
}

// Leaf returns the last element of a category path, used by the listing
// filter.
func Leaf(path []string) (string, bool) {
	if len(path) == 0 {
		return "", false
	}
	return path[len(path)-1], true
}
