package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusPaid      = "paid"
	StatusShipped   = "shipped"
)

// ReservationStatuses lists the workflow states in order.
var ReservationStatuses = []string{StatusPending, StatusConfirmed, StatusPaid, StatusShipped}

// Reservation stands in for an order. Product fields are a snapshot taken
// when the reservation was placed.
type Reservation struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CustomerName    string             `bson:"customerName" json:"customerName"`
	CustomerEmail   string             `bson:"customerEmail" json:"customerEmail"`
	CustomerPhone   string             `bson:"customerPhone" json:"customerPhone"`
	ProductID       primitive.ObjectID `bson:"productId" json:"productId"`
	ProductName     string             `bson:"productName" json:"productName"`
	ProductPrice    float64            `bson:"productPrice" json:"productPrice"`
	ProductImage    string             `bson:"productImage" json:"productImage"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	SelectedOptions map[string]string  `bson:"selectedOptions" json:"selectedOptions"`
	Status          string             `bson:"status" json:"status"`
	StatusUpdatedAt *time.Time         `bson:"statusUpdatedAt,omitempty" json:"statusUpdatedAt,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
