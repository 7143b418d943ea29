package receipt

import (
	"fmt"

	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
)

// ExportState tracks one export attempt.
//
//	Idle -> Validating -> Idle (invalid)
//	                   -> Building -> WaitingForAsset -> Saved
//	                               |                  -> Failed
//	                               +-> Failed
type ExportState string

const (
	ExportIdle            ExportState = "idle"
	ExportValidating      ExportState = "validating"
	ExportBuilding        ExportState = "building"
	ExportWaitingForAsset ExportState = "waiting_for_asset"
	ExportSaved           ExportState = "saved"
	ExportFailed          ExportState = "failed"
)

var exportTransitions = map[ExportState][]ExportState{
	ExportIdle:            {ExportValidating},
	ExportValidating:      {ExportIdle, ExportBuilding},
	ExportBuilding:        {ExportWaitingForAsset, ExportFailed},
	ExportWaitingForAsset: {ExportSaved, ExportFailed},
	ExportSaved:           {ExportValidating},
	ExportFailed:          {ExportValidating},
}

// CanTransition reports whether s may move to next.
func (s ExportState) CanTransition(next ExportState) bool {
	for _, allowed := range exportTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns next or an error if the move is not allowed.
func (s ExportState) Transition(next ExportState) (ExportState, error) {
	if !s.CanTransition(next) {
		return s, shared.WrapError("receipt", "Export", shared.ErrInvalidState,
			"invalid export transition", fmt.Errorf("%s -> %s", s, next))
	}
	return next, nil
}

// InProgress reports whether an export attempt is underway.
func (s ExportState) InProgress() bool {
	return s == ExportValidating || s == ExportBuilding || s == ExportWaitingForAsset
}

// AssetPolicy decides what happens when the signature image cannot be
// loaded in time.
type AssetPolicy string

const (
	// AssetPolicyFail abandons the export; nothing is saved.
	AssetPolicyFail AssetPolicy = "fail"
	// AssetPolicyOmit finalizes the receipt without the image.
	AssetPolicyOmit AssetPolicy = "omit"
)

// ParseAssetPolicy maps configuration text to a policy, defaulting to fail.
func ParseAssetPolicy(s string) AssetPolicy {
	if AssetPolicy(s) == AssetPolicyOmit {
		return AssetPolicyOmit
	}
	return AssetPolicyFail
}
