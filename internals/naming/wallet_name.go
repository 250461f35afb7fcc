// Package naming suggests names for new wallets.
package naming

import (
	"fmt"
	"slices"
)

const walletPrefix = "wallet_"

// NewWalletName returns the first wallet_N, counting from 1, that is not
// already taken.
func NewWalletName(existing []string) string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s%d", walletPrefix, n)
		if !slices.Contains(existing, name) {
			return name
		}
	}
}
