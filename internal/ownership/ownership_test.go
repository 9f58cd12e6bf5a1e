package ownership

import (
	"context"
	"errors"
	"testing"

	"loandesk/backend/internal/platform/apperr"
)

func TestParseID(t *testing.T) {
	testCases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{" 7 ", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tc := range testCases {
		got, err := ParseID(tc.in)
		if tc.wantErr {
			if !errors.Is(err, apperr.ErrBadRequest) {
				t.Errorf("ParseID(%q) err = %v, want ErrBadRequest", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseID(%q) = (%d, %v), want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg := Registry{
		KindLoanBuyer: ResolverFunc(func(ctx context.Context, id string) ([]string, error) {
			return []string{"broker-1", "creator-1"}, nil
		}),
	}
	owners, err := reg.Resolve(context.Background(), KindLoanBuyer, "1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(owners) != 2 || owners[0] != "broker-1" {
		t.Errorf("owners = %v", owners)
	}

	_, err = reg.Resolve(context.Background(), KindLoan, "1")
	if !errors.Is(err, ErrUnknownKind) || !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("unregistered kind err = %v, want ErrUnknownKind wrapping ErrForbidden", err)
	}
	_, err = reg.Resolve(context.Background(), Kind("invoice"), "1")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("unknown kind err = %v, want forbidden", err)
	}
}
