package experiment

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/rewired-gh/pricepilot/internal/models"
	"github.com/rewired-gh/pricepilot/internal/pricing"
)

// variantShare is the percentage of users routed to the variant arm.
const variantShare = 50

// Allocate assigns a user to an arm for a product. The assignment is a pure
// function of the pair, so a user sees the same price on every visit.
func Allocate(productID, userID string) models.Group {
	id := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(productID+"-"+userID))
	if binary.BigEndian.Uint32(id[:4])%100 < variantShare {
		return models.GroupVariant
	}
	return models.GroupControl
}

// VariantPrice is the test price for a relative change, rounded to cents.
func VariantPrice(current, changePct float64) float64 {
	return pricing.Round(current*(1+changePct), pricing.CurrencyPlaces)
}

// Arms builds the control and variant arms for a product.
func Arms(productID string, current, changePct float64) []models.ExperimentArm {
	return []models.ExperimentArm{
		{ProductID: productID, Group: models.GroupControl, TestPrice: current},
		{ProductID: productID, Group: models.GroupVariant, TestPrice: VariantPrice(current, changePct)},
	}
}
