package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductOption is a variant axis such as size or colour.
type ProductOption struct {
	Name   string   `bson:"name" json:"name"`
	Values []string `bson:"values" json:"values"`
}

type Product struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string               `bson:"name" json:"name"`
	Description     string               `bson:"description,omitempty" json:"description,omitempty"`
	Price           float64              `bson:"price" json:"price"`
	MRP             float64              `bson:"mrp" json:"mrp"`
	DiscountPercent int                  `bson:"-" json:"discountPercent"`
	Category        string               `bson:"category" json:"category"`
	Images          StringList           `bson:"images" json:"images"`
	Bestseller      bool                 `bson:"bestseller" json:"bestseller"`
	InStock         bool                 `bson:"inStock" json:"inStock"`
	Options         []ProductOption      `bson:"options" json:"options"`
	RelatedProducts []primitive.ObjectID `bson:"relatedProducts" json:"relatedProducts"`
	Rating          *RatingSummary       `bson:"-" json:"rating,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// RelatedProduct is the short form returned next to a product detail.
type RelatedProduct struct {
	ID     primitive.ObjectID `bson:"_id" json:"id"`
	Name   string             `bson:"name" json:"name"`
	Price  float64            `bson:"price" json:"price"`
	Images StringList         `bson:"images" json:"images"`
}
