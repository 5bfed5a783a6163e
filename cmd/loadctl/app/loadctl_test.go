package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"medcourier/cmd/loadctl/app/options"
	"medcourier/pkg/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewLoadctlCommand(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQuoteCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
		wantErr  bool
	}{
		{
			name:     "business hours",
			args:     []string{"quote", "--distance", "20", "--service-type", "stat", "--ready-time", "2026-03-10T15:00:00Z"},
			contains: []string{"90.00", "STAT", "4.50"},
		},
		{
			name:     "after hours flat fee",
			args:     []string{"quote", "--distance", "20", "--service-type", "STAT", "--ready-time", "2026-03-10T02:00:00Z"},
			contains: []string{"after_hours", "35.00", "125.00"},
		},
		{
			name:     "driver minimum",
			args:     []string{"quote", "--distance", "20", "--service-type", "STAT", "--ready-time", "2026-03-10T15:00:00Z", "--driver-min", "5"},
			contains: []string{"100.00", "raised to minimum: true"},
		},
		{
			name:     "deadline",
			args:     []string{"quote", "--distance", "90", "--ready-time", "2026-03-10T15:00:00Z", "--deadline", "2026-03-10T16:00:00Z"},
			contains: []string{"not reachable", "Deadline reachable", "false"},
		},
		{name: "unknown tier", args: []string{"quote", "--distance", "3", "--service-type", "bike"}, wantErr: true},
		{name: "bad time", args: []string{"quote", "--distance", "3", "--ready-time", "noon"}, wantErr: true},
		{name: "distance required", args: []string{"quote"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got output %s", out)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output does not contain %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestTransitionsCommand(t *testing.T) {
	out, err := execute(t, "transitions")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"ACTION", "restore_denied", "DRIVER_QUOTE_SUBMITTED", "CANCELLED"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q", want)
		}
	}
}

func TestAuth(t *testing.T) {
	tests := []struct {
		as      string
		want    models.AuthContext
		wantErr bool
	}{
		{as: "ADMIN:ops-1", want: models.AuthContext{UserID: "ops-1", UserType: models.UserAdmin}},
		{as: "shipper:s1", want: models.AuthContext{UserID: "s1", UserType: models.UserShipper}},
		{as: "ADMIN:", wantErr: true},
		{as: "ops-1", wantErr: true},
		{as: "ROBOT:r1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.as, func(t *testing.T) {
			got, err := (&options.Options{As: tt.as}).Auth()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
