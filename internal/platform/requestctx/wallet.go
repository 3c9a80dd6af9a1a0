// Package requestctx carries request-scoped identity through handlers.
package requestctx

import "context"

// walletAddressContextKey is the context key for the authenticated wallet.
type walletAddressContextKey struct{}

// WithWalletAddress stores the authenticated wallet address in context.
func WithWalletAddress(ctx context.Context, address string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, walletAddressContextKey{}, address)
}

// WalletAddressFromContext returns the wallet address stored in context.
func WalletAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(walletAddressContextKey{}).(string)
	return value
}
