package domain

import "time"

// Category groups expenses. Names are unique per user.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// OtherCategoryName is the catch-all category every seeded user gets.
const OtherCategoryName = "その他"

// DefaultCategoryNames is the category set seeded for new users.
var DefaultCategoryNames = []string{
	"食費",
	"交通費",
	"日用品",
	"教育",
	"娯楽",
	"通信費",
	"衣服",
	"住居・光熱費",
	"医療",
	OtherCategoryName,
}
