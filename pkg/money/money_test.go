package money

import (
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "100", want: "100"},
		{in: "10.005", want: "10.01"},
		{in: "0.004", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-5", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Normalize(d(tt.in))
		if tt.wantErr {
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("Normalize(%s) expected validation error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Normalize(%s) unexpected error: %v", tt.in, err)
		}
		if !got.Equal(d(tt.want)) {
			t.Fatalf("Normalize(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSplitSumsToGross(t *testing.T) {
	tests := []struct {
		gross, rate, admin, doctor string
	}{
		{gross: "1000", rate: "0.30", admin: "300", doctor: "700"},
		{gross: "0.01", rate: "0.30", admin: "0", doctor: "0.01"},
		{gross: "333.33", rate: "0.30", admin: "100", doctor: "233.33"},
		{gross: "99.99", rate: "0.30", admin: "30", doctor: "69.99"},
		{gross: "500", rate: "0", admin: "0", doctor: "500"},
		{gross: "500", rate: "1", admin: "500", doctor: "0"},
	}
	for _, tt := range tests {
		admin, doctor, err := Split(d(tt.gross), d(tt.rate))
		if err != nil {
			t.Fatalf("Split(%s,%s) error: %v", tt.gross, tt.rate, err)
		}
		if !admin.Equal(d(tt.admin)) || !doctor.Equal(d(tt.doctor)) {
			t.Fatalf("Split(%s,%s) = %s/%s, want %s/%s", tt.gross, tt.rate, admin, doctor, tt.admin, tt.doctor)
		}
		if !admin.Add(doctor).Equal(d(tt.gross)) {
			t.Fatalf("shares of %s do not sum to gross", tt.gross)
		}
	}
}

func TestSplitRejectsBadRate(t *testing.T) {
	if _, _, err := Split(d("100"), d("1.5")); err == nil {
		t.Fatal("expected rate above one to fail")
	}
	if _, _, err := Split(d("100"), d("-0.1")); err == nil {
		t.Fatal("expected negative rate to fail")
	}
}

func TestPercentAndMinorUnits(t *testing.T) {
	if got := Percent(d("0.30")); got != "30%" {
		t.Fatalf("expected 30%%, got %s", got)
	}
	if got := FromMinorUnits(1999); !got.Equal(d("19.99")) {
		t.Fatalf("expected 19.99, got %s", got)
	}
	if got := ToMinorUnits(d("886")); got != 88600 {
		t.Fatalf("expected 88600, got %d", got)
	}
}
