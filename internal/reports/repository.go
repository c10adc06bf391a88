package reports

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/supserrr/vevurn-sub002/pkg/db/models"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

// Repository runs the aggregate queries behind the reports.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type totalsRow struct {
	SalesCount    int64
	GrossTotal    decimal.Decimal
	TaxTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
}

type productRow struct {
	ProductID string
	Name      string
	Quantity  int64
	Revenue   decimal.Decimal
}

func (r *Repository) completed(ctx context.Context, day dayRange) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("sales.status = ?", enums.SaleStatusCompleted).
		Where("sales.created_at >= ? AND sales.created_at < ?", day.From.UTC(), day.To.UTC())
}

// Totals sums the headline figures of completed sales in the range.
func (r *Repository) Totals(ctx context.Context, day dayRange) (totalsRow, error) {
	var row totalsRow
	err := r.completed(ctx, day).
		Select(`COUNT(*) AS sales_count,
			COALESCE(SUM(total_amount), 0) AS gross_total,
			COALESCE(SUM(tax_amount), 0) AS tax_total,
			COALESCE(SUM(discount_amount), 0) AS discount_total`).
		Scan(&row).Error
	return row, err
}

// ByPaymentMethod groups completed sales by settlement channel.
func (r *Repository) ByPaymentMethod(ctx context.Context, day dayRange) ([]MethodTotal, error) {
	var rows []MethodTotal
	err := r.completed(ctx, day).
		Select("payment_method AS method, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total").
		Group("payment_method").
		Order("total DESC").
		Order("payment_method ASC").
		Scan(&rows).Error
	return rows, err
}

// TopProducts ranks products by units sold, then revenue.
func (r *Repository) TopProducts(ctx context.Context, day dayRange, limit int) ([]ProductTotal, error) {
	var rows []productRow
	err := r.completed(ctx, day).
		Joins("JOIN sale_items ON sale_items.sale_id = sales.id").
		Select(`sale_items.product_id AS product_id,
			MAX(sale_items.name) AS name,
			SUM(sale_items.quantity) AS quantity,
			COALESCE(SUM(sale_items.total_price), 0) AS revenue`).
		Group("sale_items.product_id").
		Order("quantity DESC").
		Order("revenue DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ProductTotal, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ProductID)
		if err != nil {
			return nil, err
		}
		out = append(out, ProductTotal{
			ProductID: id,
			Name:      row.Name,
			Quantity:  row.Quantity,
			Revenue:   row.Revenue,
		})
	}
	return out, nil
}
