package util

import (
	"testing"
)

func TestAmountFromMinorUnits(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{13647, "136.47"},
		{100, "1"},
		{1, "0.01"},
		{-250, "-2.5"},
		{0, "0"},
	}
	for _, tc := range cases {
		if got := AmountFromMinorUnits(tc.in); got != tc.want {
			t.Errorf("AmountFromMinorUnits(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDateDMYToYMD(t *testing.T) {
	if got := DateDMYToYMD("14.02.2019"); got != "2019-02-14" {
		t.Errorf("got %q, want 2019-02-14", got)
	}
}

func TestSameIBAN(t *testing.T) {
	if !SameIBAN("AT25 1657 6741 4744 9499", "AT251657674147449499") {
		t.Error("expected IBANs to match ignoring whitespace")
	}
	if SameIBAN("AT1", "AT2") {
		t.Error("expected different IBANs not to match")
	}
	if SameIBAN("", "") {
		t.Error("expected empty IBANs not to match")
	}
}

func TestAddQuery(t *testing.T) {
	got := AddQuery("https://example.com/cb", map[string]string{"result": "/result/abc"})
	if got != "https://example.com/cb?result=%2Fresult%2Fabc" {
		t.Errorf("unexpected uri %q", got)
	}

	got = AddQuery("https://example.com/cb?a=1", map[string]string{"b": "2"})
	if got != "https://example.com/cb?a=1&b=2" {
		t.Errorf("unexpected uri %q", got)
	}

	if got := AddQuery("https://example.com", nil); got != "https://example.com" {
		t.Errorf("unexpected uri %q", got)
	}
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(16)
	if err != nil {
		t.Fatalf("RandomHex failed: %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("got %d hex chars, want 32", len(a))
	}
	b, _ := RandomHex(16)
	if a == b {
		t.Error("two random values collided")
	}
}

func TestContainsOnlyDigits(t *testing.T) {
	if !ContainsOnlyDigits("0123") {
		t.Error("expected digits to pass")
	}
	if ContainsOnlyDigits("12a") || ContainsOnlyDigits("") {
		t.Error("expected non-digits to fail")
	}
}
