package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownRole is returned when a stored or cached role is not admin or seller
var ErrUnknownRole = errors.New("unknown telegram user role")

// ErrInvalidPage is returned for pagination bounds below zero
var ErrInvalidPage = errors.New("invalid page bounds")

// Shop represents a marketplace shop
type Shop struct {
	ID                     int64
	Name                   string
	Slug                   string
	ClientID               string
	APIKey                 string
	ShipperAPIKey          string
	VendorName             string
	IsActive               bool
	PriceUpdating          bool
	IndividualUpdatingTime bool
}

// Summary returns a snapshot of the shop suitable for session storage
func (s Shop) Summary() ShopSummary {
	isActive := s.IsActive
	priceUpdating := s.PriceUpdating
	individual := s.IndividualUpdatingTime
	return ShopSummary{
		ID:                     s.ID,
		Name:                   s.Name,
		Slug:                   s.Slug,
		APIKey:                 s.APIKey,
		VendorName:             s.VendorName,
		IsActive:               &isActive,
		PriceUpdating:          &priceUpdating,
		IndividualUpdatingTime: &individual,
	}
}

// ShopSummary is an immutable snapshot of a shop.
// It is not refreshed when the shop changes; handlers re-fetch before mutating.
type ShopSummary struct {
	ID                     int64  `json:"id"`
	Name                   string `json:"name"`
	Slug                   string `json:"slug,omitempty"`
	APIKey                 string `json:"api_key,omitempty"`
	VendorName             string `json:"vendor_name,omitempty"`
	IsActive               *bool  `json:"is_active,omitempty"`
	PriceUpdating          *bool  `json:"price_updating,omitempty"`
	IndividualUpdatingTime *bool  `json:"individual_updating_time,omitempty"`
}

// PageCursor addresses one page of a listing
type PageCursor struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Validate rejects negative bounds and an empty page size
func (p PageCursor) Validate() error {
	if p.Limit <= 0 || p.Offset < 0 {
		return fmt.Errorf("%w: limit=%d offset=%d", ErrInvalidPage, p.Limit, p.Offset)
	}
	return nil
}

// Role is the role of a telegram user
type Role string

const (
	RoleUnset  Role = ""
	RoleAdmin  Role = "AD"
	RoleSeller Role = "SE"
)

// ParseRole validates a stored role code
func ParseRole(code string) (Role, error) {
	switch Role(code) {
	case RoleAdmin, RoleSeller:
		return Role(code), nil
	default:
		return RoleUnset, fmt.Errorf("%w: %q", ErrUnknownRole, code)
	}
}

// TelegramUser represents a bot user known to the back-office
type TelegramUser struct {
	ChatID      int64
	FirstName   string
	LastName    string
	Username    string
	Role        Role
	IsBanned    bool
	IsActive    bool // subscription
	IsLoggedOut bool
	CreatedAt   time.Time
}

// UserStatuses describes the access flags of a chat
type UserStatuses struct {
	Exists      bool
	IsBanned    bool
	IsActive    bool
	IsLoggedOut bool
}

// LoggedIn reports whether the chat has a current login
func (s UserStatuses) LoggedIn() bool {
	return s.Exists && !s.IsLoggedOut
}

// Profile carries the telegram names saved on login
type Profile struct {
	FirstName string
	LastName  string
	Username  string
}
