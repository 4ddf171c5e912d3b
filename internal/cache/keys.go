package cache

// KeyCart is the cached cart snapshot for an owner.
func KeyCart(owner string) string {
	return "cart:" + owner
}

// KeyOrders is the cached order list for an owner. This service never fills
// it, the storefront does; completion drops it so the new order shows up.
func KeyOrders(owner string) string {
	return "orders:" + owner
}
