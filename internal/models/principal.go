package models

// Principal roles.
const (
	RoleAdmin    = "admin"    // Administrative console user
	RolePartner  = "partner"  // Delivery partner console user
	RoleCustomer = "customer" // Storefront customer
)

// Principal is the authenticated actor returned by the login endpoint and
// persisted alongside the token so a session survives restarts.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin returns true if the principal may use the administrative console.
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Credentials are sent to the login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
