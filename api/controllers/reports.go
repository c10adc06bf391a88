package controllers

import (
	"net/http"
	"strings"

	"github.com/supserrr/vevurn-sub002/internal/reports"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

// ReportsDaily summarises ?date=YYYY-MM-DD, today when omitted.
func ReportsDaily(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return serve("reports", svc != nil, logg, func(r *http.Request) (reply, error) {
		report, err := svc.Daily(r.Context(), strings.TrimSpace(r.URL.Query().Get("date")))
		return ok(report), err
	})
}
