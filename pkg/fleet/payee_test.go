package fleet

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"medcourier/pkg/errs"
	"medcourier/pkg/models"
)

func TestResolvePayee(t *testing.T) {
	fleetID := "f1"

	tests := []struct {
		name    string
		driver  *models.Driver
		want    Payee
		wantErr errs.Code
	}{
		{"independent", &models.Driver{ID: "d1", FleetRole: models.FleetRoleIndependent}, Payee{Type: models.PayeeDriver, ID: "d1"}, ""},
		{"fleet driver", &models.Driver{ID: "d2", FleetRole: models.FleetRoleDriver, FleetID: &fleetID}, Payee{Type: models.PayeeFleet, ID: "f1"}, ""},
		{"fleet admin", &models.Driver{ID: "d3", FleetRole: models.FleetRoleAdmin, FleetID: &fleetID}, Payee{Type: models.PayeeFleet, ID: "f1"}, ""},
		{"fleet owner", &models.Driver{ID: "d4", FleetRole: models.FleetRoleOwner, FleetID: &fleetID}, Payee{Type: models.PayeeFleet, ID: "f1"}, ""},
		{"member without fleet", &models.Driver{ID: "d5", FleetRole: models.FleetRoleDriver}, Payee{}, errs.CodeInvariant},
		{"independent with fleet", &models.Driver{ID: "d6", FleetRole: models.FleetRoleIndependent, FleetID: &fleetID}, Payee{}, errs.CodeInvariant},
		{"unknown role", &models.Driver{ID: "d7", FleetRole: "CONTRACTOR"}, Payee{}, errs.CodeInvariant},
		{"nil driver", nil, Payee{}, errs.CodeMissingData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePayee(tt.driver)
			if tt.wantErr != "" {
				if !errs.HasCode(err, tt.wantErr) {
					t.Fatalf("err = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolvePayee: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("payee mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
