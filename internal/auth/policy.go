package auth

const (
	ResourceOrders     = "orders"
	ResourceOrderItems = "order_items"
	ResourcePayments   = "payments"
	ResourceInventory  = "inventory"
	ResourceTables     = "tables"

	ActionCreate       = "create"
	ActionUpdateStatus = "update_status"
	ActionCancel       = "cancel"
	ActionRefund       = "refund"
	ActionAdjust       = "adjust"
)

// Policy maps a role to the resource.action pairs it may perform.
// A nil entry means unrestricted.
type Policy map[Role]map[string]bool

func (p Policy) CanAccess(role Role, resource, action string) bool {
	allowed, ok := p[role]
	if !ok {
		return false
	}
	if allowed == nil {
		return true
	}
	return allowed[resource+"."+action]
}

func allow(perms ...string) map[string]bool {
	m := make(map[string]bool, len(perms))
	for _, p := range perms {
		m[p] = true
	}
	return m
}

var DefaultPolicy = Policy{
	RoleOwner: nil,
	RoleManager: allow(
		"orders.create", "orders.update_status", "orders.cancel",
		"order_items.update_status",
		"payments.create", "payments.refund",
		"inventory.adjust",
		"tables.update_status",
	),
	RoleCashier: allow(
		"orders.create", "orders.update_status", "orders.cancel",
		"payments.create",
		"tables.update_status",
	),
	RoleKitchen: allow(
		"orders.update_status",
		"order_items.update_status",
	),
	RoleWaitstaff: allow(
		"orders.create", "orders.update_status",
		"order_items.update_status",
		"tables.update_status",
	),
	RoleSystem: allow(
		"orders.update_status",
	),
}
