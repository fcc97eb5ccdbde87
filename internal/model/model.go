package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known values. Unknown roles
// must never be accepted from token payloads or request bodies.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type ItemCategory string

const (
	CategoryTextbooks     ItemCategory = "textbooks"
	CategoryElectronics   ItemCategory = "electronics"
	CategoryFurniture     ItemCategory = "furniture"
	CategoryClothing      ItemCategory = "clothing"
	CategorySportsFitness ItemCategory = "sports_fitness"
	CategoryOther         ItemCategory = "other"
)

func (c ItemCategory) Valid() bool {
	switch c {
	case CategoryTextbooks, CategoryElectronics, CategoryFurniture, CategoryClothing, CategorySportsFitness, CategoryOther:
		return true
	}
	return false
}

type ItemCondition string

const (
	ConditionNew     ItemCondition = "new"
	ConditionLikeNew ItemCondition = "like_new"
	ConditionGood    ItemCondition = "good"
	ConditionFair    ItemCondition = "fair"
	ConditionPoor    ItemCondition = "poor"
)

func (c ItemCondition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

type ItemStatus string

const (
	StatusAvailable ItemStatus = "available"
	StatusSold      ItemStatus = "sold"
	StatusReserved  ItemStatus = "reserved"
	StatusInactive  ItemStatus = "inactive"
	StatusRemoved   ItemStatus = "removed"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusSold, StatusReserved, StatusInactive, StatusRemoved:
		return true
	}
	return false
}

type User struct {
	ID             int64
	Email          string
	Username       string
	HashedPassword string
	FullName       string
	Phone          *string
	StudentID      string
	Role           Role
	IsActive       bool
	IsVerified     bool
	// Most recently issued token pair. A non-null stored access token must
	// textually match a presented bearer token; clearing the pair revokes
	// every outstanding token for the user.
	AccessToken  *string
	RefreshToken *string
	CreatedBy    *string
	UpdatedBy    *string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

type Item struct {
	ID           int64
	Title        string
	Description  string
	Price        float64
	Condition    ItemCondition
	Status       ItemStatus
	Category     ItemCategory
	Location     *string
	IsNegotiable bool
	ItemURL      *string
	SellerID     int64
	CreatedBy    *string
	UpdatedBy    *string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}
