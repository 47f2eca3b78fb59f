package cache

import "context"

// DeliveryGuard remembers webhook deliveries for a bounded window so a
// redelivered event is processed once.
type DeliveryGuard interface {
	// Claim reports true the first time key is seen within the window.
	Claim(ctx context.Context, key string) (bool, error)
}
