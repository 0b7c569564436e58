package core

// CategoryLabel is what a view shows for a transaction's category.
type CategoryLabel struct {
	ID            ID     `json:"id,omitempty"`
	Name          string `json:"name"`
	Icon          string `json:"icon"`
	Color         string `json:"color"`
	Uncategorized bool   `json:"uncategorized"`
}

// CategoryIndex looks categories up by canonical id.
type CategoryIndex map[ID]Category

// IndexCategories builds an index; on duplicate ids the last one wins.
func IndexCategories(cats []Category) CategoryIndex {
	idx := make(CategoryIndex, len(cats))
	for _, c := range cats {
		idx[c.ID.Normalize()] = c
	}
	return idx
}

// Lookup returns the category for id. Empty and dangling references are
// reported as absent, not as errors.
func (idx CategoryIndex) Lookup(id ID) (Category, bool) {
	key := id.Normalize()
	if key == "" {
		return Category{}, false
	}
	c, ok := idx[key]
	return c, ok
}

// Label resolves id to a display label, falling back to "Outros".
func (idx CategoryIndex) Label(id ID) CategoryLabel {
	c, ok := idx.Lookup(id)
	if !ok {
		return CategoryLabel{
			Name:          DefaultCategoryName,
			Icon:          DefaultCategoryIcon,
			Color:         DefaultCategoryColor,
			Uncategorized: true,
		}
	}
	l := CategoryLabel{ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color}
	if l.Icon == "" {
		l.Icon = DefaultCategoryIcon
	}
	if l.Color == "" {
		l.Color = DefaultCategoryColor
	}
	return l
}
