package enums

// SaleStatus tracks whether a recorded sale still counts toward revenue.
type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusVoided    SaleStatus = "voided"
)

var saleStatuses = set[SaleStatus]{SaleStatusCompleted, SaleStatusVoided}

func (s SaleStatus) String() string { return string(s) }

func (s SaleStatus) IsValid() bool { return saleStatuses.has(s) }

func ParseSaleStatus(value string) (SaleStatus, error) {
	return saleStatuses.parse("sale status", value)
}
