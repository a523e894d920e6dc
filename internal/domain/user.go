package domain

import "time"

// Role is the closed set of storefront roles used for UI-level gating.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r can use staff tooling. Admins count as staff.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// Profile is the cached copy of the authenticated user's record. The remote API owns it.
type Profile struct {
	ID              string     `json:"_id"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone,omitempty"`
	Role            Role       `json:"role"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	IsActive        bool       `json:"isActive"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// PublicProfile is a Profile without account-state fields.
type PublicProfile struct {
	ID              string    `json:"_id"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone,omitempty"`
	Role            Role      `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Public strips IsActive and LastLogin.
func (p *Profile) Public() *PublicProfile {
	if p == nil {
		return nil
	}
	return &PublicProfile{
		ID:              p.ID,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		Email:           p.Email,
		Phone:           p.Phone,
		Role:            p.Role,
		IsEmailVerified: p.IsEmailVerified,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.LastLogin != nil {
		t := *p.LastLogin
		cp.LastLogin = &t
	}
	return &cp
}
