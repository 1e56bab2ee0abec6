package domain

// Category is the tax treatment assigned to a transfer.
type Category string

const (
	CategoryROIIncome Category = "ROI_INCOME"
	CategoryDisposal  Category = "DISPOSAL"
	CategoryPurchase  Category = "PURCHASE"
	CategoryTransfer  Category = "TRANSFER"
	CategorySpam      Category = "SPAM"
)

// AllCategories lists every category in report order.
var AllCategories = []Category{
	CategoryROIIncome,
	CategoryDisposal,
	CategoryPurchase,
	CategoryTransfer,
	CategorySpam,
}

// String returns the string representation of Category.
func (c Category) String() string {
	return string(c)
}

// IsValid checks if the category is a valid value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryROIIncome, CategoryDisposal, CategoryPurchase, CategoryTransfer, CategorySpam:
		return true
	}
	return false
}

// Classification is the classifier verdict for one transfer.
type Classification struct {
	Category    Category `json:"category"`
	Confidence  int      `json:"confidence"` // 0..100, informational
	Reason      string   `json:"reason"`
	MatchedRule string   `json:"matchedRule"`
}
