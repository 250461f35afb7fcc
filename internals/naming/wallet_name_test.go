package naming

import "testing"

func TestNewWalletName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		existing []string
		want     string
	}{
		{nil, "wallet_1"},
		{[]string{"main"}, "wallet_1"},
		{[]string{"wallet_1"}, "wallet_2"},
		{[]string{"wallet_2", "wallet_1", "wallet_4"}, "wallet_3"},
		{[]string{"wallet_01"}, "wallet_1"},
	}

	for _, tt := range tests {
		if got := NewWalletName(tt.existing); got != tt.want {
			t.Fatalf("NewWalletName(%q) = %q, want %q", tt.existing, got, tt.want)
		}
	}
}
