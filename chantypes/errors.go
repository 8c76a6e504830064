package chantypes

import "fmt"

// Sentinel errors for malformed channel data, grounded on
// channeldb/error.go's plain fmt.Errorf sentinel-var-block convention.
var (
	ErrUnknownAsset       = fmt.Errorf("asset is not known to this channel")
	ErrParticipantMismatch = fmt.Errorf("participant set does not match channel")
	ErrTransferNotFound   = fmt.Errorf("transfer is not active in this channel")
	ErrTransferExists     = fmt.Errorf("transfer already active in this channel")
)
