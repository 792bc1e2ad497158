package core

// DefaultCategoryIcon is shown for categories outside the recommended set.
const DefaultCategoryIcon = "📦"

// Category is a recommended category with its display icon.
type Category struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

var recommendedCategories = []Category{
	{Name: "Food", Icon: "🍔"},
	{Name: "Transportation", Icon: "🚗"},
	{Name: "Entertainment", Icon: "🎬"},
	{Name: "Utilities", Icon: "💡"},
	{Name: "Salary", Icon: "💰"},
	{Name: "Freelance", Icon: "💻"},
	{Name: "Other", Icon: DefaultCategoryIcon},
}

// RecommendedCategories returns the categories offered by entry forms.
// Transactions may still carry any other category.
func RecommendedCategories() []Category {
	out := make([]Category, len(recommendedCategories))
	copy(out, recommendedCategories)
	return out
}

// CategoryIcon returns the icon for name, or DefaultCategoryIcon when the
// category is not recommended.
func CategoryIcon(name string) string {
	for _, c := range recommendedCategories {
		if c.Name == name {
			return c.Icon
		}
	}
	return DefaultCategoryIcon
}
