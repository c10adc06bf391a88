package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/supserrr/vevurn-sub002/pkg/enums"
)

func TestRequireRoleRanksStaff(t *testing.T) {
	tests := []struct {
		role string
		min  enums.StaffRole
		want int
	}{
		{"cashier", enums.StaffRoleManager, http.StatusForbidden},
		{"manager", enums.StaffRoleManager, http.StatusOK},
		{"admin", enums.StaffRoleManager, http.StatusOK},
		{"manager", enums.StaffRoleAdmin, http.StatusForbidden},
		{"", enums.StaffRoleCashier, http.StatusForbidden},
		{"owner", enums.StaffRoleCashier, http.StatusForbidden},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), Principal{UserID: uuid.New(), Role: enums.StaffRole(tt.role)}))
		rec := httptest.NewRecorder()
		RequireRole(tt.min, nil)(okHandler()).ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Fatalf("role %q min %s: expected %d got %d", tt.role, tt.min, tt.want, rec.Code)
		}
	}
}

func TestRequireRoleNeedsPrincipal(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireRole(enums.StaffRoleCashier, nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}
