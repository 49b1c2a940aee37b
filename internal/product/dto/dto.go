package dto

type ProductFilters struct {
	BranchID    string
	CategoryID  string
	IsActive    *bool
	SearchQuery string // name, sku or barcode
	SortBy      string // name, price, created_at
	SortOrder   string // asc, desc
	Page        int
	PageSize    int
}
