package dto

import (
	"stradapos/internal/core/apperror"
	"stradapos/internal/core/id"
	"stradapos/internal/domain/reconcile"
)

// ReconcileAcceptRequest accepts recorded quantities as-is.
type ReconcileAcceptRequest struct {
	Note string `json:"note"`
}

// ReconcileVoidRequest voids a conflicted sale entirely.
type ReconcileVoidRequest struct {
	Note string `json:"note"`
}

// ItemAdjustmentRequest corrects one sale line to the actual quantity.
type ItemAdjustmentRequest struct {
	ItemID      string `json:"itemId" binding:"required,uuid"`
	NewQuantity int64  `json:"newQuantity" binding:"min=0"`
}

// ReconcileAdjustRequest corrects sale quantities downward and restores the
// difference to stock.
type ReconcileAdjustRequest struct {
	Adjustments []ItemAdjustmentRequest `json:"adjustments" binding:"required,min=1,dive"`
	Note        string                  `json:"note"`
}

// ToAdjustments converts to domain adjustments.
func (r *ReconcileAdjustRequest) ToAdjustments() ([]reconcile.ItemAdjustment, error) {
	adjustments := make([]reconcile.ItemAdjustment, len(r.Adjustments))
	for i, a := range r.Adjustments {
		itemID, err := id.Parse(a.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid itemId format").WithDetail("itemId", a.ItemID)
		}
		adjustments[i] = reconcile.ItemAdjustment{
			ItemID:      itemID,
			NewQuantity: a.NewQuantity,
		}
	}
	return adjustments, nil
}
