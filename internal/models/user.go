package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User is created lazily on first sign-in; UID comes from the identity provider.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UID         string             `bson:"uid" json:"uid"`
	Email       string             `bson:"email" json:"email"`
	DisplayName string             `bson:"displayName" json:"displayName"`
	IsAdmin     bool               `bson:"isAdmin" json:"isAdmin"`
	Role        string             `bson:"role" json:"role"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	LastLoginAt time.Time          `bson:"lastLoginAt" json:"lastLoginAt"`
}

// Invites are deleted when consumed, so pending is the only stored status.
const InviteStatusPending = "pending"

// AdminInvite is keyed by the lowercased invited email.
type AdminInvite struct {
	Email     string    `bson:"_id" json:"email"`
	InvitedBy string    `bson:"invitedBy" json:"invitedBy"`
	Status    string    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
