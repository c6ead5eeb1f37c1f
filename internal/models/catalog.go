package models

import "time"

// User is a storefront account as seen by the administrative console.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Banned    bool      `json:"banned"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserStatus buckets a user for status counts.
func (u User) UserStatus() string {
	if u.Banned {
		return "banned"
	}
	return "active"
}

type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Status   string  `json:"status"`
}

// ProductUpdate carries the editable product fields. Nil fields are left
// unchanged by the server and by the local patch.
type ProductUpdate struct {
	Name   *string  `json:"name,omitempty"`
	Price  *float64 `json:"price,omitempty"`
	Stock  *int     `json:"stock,omitempty"`
	Status *string  `json:"status,omitempty"`
}

// IsEmpty returns true if no field is set.
func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.Price == nil && u.Stock == nil && u.Status == nil
}

// Apply copies the set fields onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
}

// DeliveryPartner is a courier managed from the partner console.
type DeliveryPartner struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Vehicle      string `json:"vehicle,omitempty"`
	Verified     bool   `json:"verified"`
	Available    bool   `json:"available"`
	ActiveOrders int    `json:"activeOrders"`
}

// PartnerStatus buckets a partner for status counts.
func (p DeliveryPartner) PartnerStatus() string {
	switch {
	case !p.Verified:
		return "pending_verification"
	case p.Available:
		return "available"
	default:
		return "unavailable"
	}
}

// Dashboard is the administrative summary snapshot.
type Dashboard struct {
	TotalOrders       int            `json:"totalOrders"`
	TotalUsers        int            `json:"totalUsers"`
	TotalProducts     int            `json:"totalProducts"`
	TotalRevenue      float64        `json:"totalRevenue"`
	OrderStatusCounts map[string]int `json:"orderStatusCounts,omitempty"`
	RecentOrders      []Order        `json:"recentOrders,omitempty"`
}
