package product

import (
	"github.com/supserrr/vevurn-sub002/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the catalogue browse.
type ProductListFilters struct {
	Query           string  `json:"q,omitempty"`
	Category        *string `json:"category,omitempty"`
	LowStock        bool    `json:"low_stock,omitempty"`
	IncludeInactive bool    `json:"include_inactive,omitempty"`
}

// ListProductsInput captures filters plus cursor pagination.
type ListProductsInput struct {
	Filters    ProductListFilters
	Pagination pagination.Params
}

// ProductListResult is one page of products.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"nextCursor,omitempty"`
}
