package handlers

import (
	"errors"
	"math"
)

type pricingUpdateInput struct {
	Price *float64
	MRP   *float64
}

type pricingUpdateResult struct {
	Price float64
	MRP   float64
}

// validatePricing accepts an mrp of 0 (no list price) or one at least the
// selling price.
func validatePricing(price, mrp float64) error {
	if !isFinite(price) || !isFinite(mrp) {
		return errors.New("price and mrp must be finite numbers")
	}
	if price <= 0 {
		return errors.New("price must be greater than 0")
	}
	if mrp < 0 {
		return errors.New("mrp cannot be negative")
	}
	if mrp > 0 && mrp < price {
		return errors.New("mrp must be greater than or equal to price")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func discountPercent(price, mrp float64) int {
	if mrp <= 0 || price <= 0 || price >= mrp {
		return 0
	}
	return int(math.Round((mrp - price) / mrp * 100))
}

func resolvePricingUpdate(existingPrice, existingMRP float64, input pricingUpdateInput) (pricingUpdateResult, error) {
	result := pricingUpdateResult{Price: existingPrice, MRP: existingMRP}
	if input.Price != nil {
		result.Price = *input.Price
	}
	if input.MRP != nil {
		result.MRP = *input.MRP
	}

	if err := validatePricing(result.Price, result.MRP); err != nil {
		return pricingUpdateResult{}, err
	}
	return result, nil
}
