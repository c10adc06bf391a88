package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/supserrr/vevurn-sub002/internal/receipts"
	pkgerrors "github.com/supserrr/vevurn-sub002/pkg/errors"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

const (
	dateLayout       = "2006-01-02"
	topProductsLimit = 10
)

// Service builds sales reports.
type Service interface {
	Daily(ctx context.Context, date string) (*DailyReport, error)
}

type ServiceParams struct {
	Repo     *Repository
	Location *time.Location
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo *Repository
	loc  *time.Location
	logg *logger.Logger
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if params.Location == nil {
		params.Location = receipts.Kigali
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{repo: params.Repo, loc: params.Location, logg: params.Logger, now: params.Now}, nil
}

// Daily reports the completed sales of the shop day named by date. An empty
// date means today in the shop's timezone.
func (s *service) Daily(ctx context.Context, date string) (*DailyReport, error) {
	day, label, err := s.resolveDay(date)
	if err != nil {
		return nil, err
	}

	totals, err := s.repo.Totals(ctx, day)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: sales totals")
	}
	methods, err := s.repo.ByPaymentMethod(ctx, day)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: payment method totals")
	}
	top, err := s.repo.TopProducts(ctx, day, topProductsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: top products")
	}
	if methods == nil {
		methods = []MethodTotal{}
	}

	ctx = s.logg.WithField(ctx, "report_date", label)
	s.logg.Debug(ctx, "daily report built")

	return &DailyReport{
		Date:            label,
		SalesCount:      totals.SalesCount,
		GrossTotal:      totals.GrossTotal,
		TaxTotal:        totals.TaxTotal,
		DiscountTotal:   totals.DiscountTotal,
		ByPaymentMethod: methods,
		TopProducts:     top,
	}, nil
}

func (s *service) resolveDay(date string) (dayRange, string, error) {
	date = strings.TrimSpace(date)
	var start time.Time
	if date == "" {
		now := s.now().In(s.loc)
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	} else {
		parsed, err := time.ParseInLocation(dateLayout, date, s.loc)
		if err != nil {
			return dayRange{}, "", pkgerrors.New(pkgerrors.CodeValidation, "date must be YYYY-MM-DD").
				WithDetails(map[string]any{"date": date})
		}
		start = parsed
	}
	return dayRange{From: start, To: start.AddDate(0, 0, 1)}, start.Format(dateLayout), nil
}
