package verification

import (
	"fmt"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
)

// statusMap is the total mapping from provider statuses to the local form.
// timeout has no provider-side counterpart; it is synthesized by the engine.
var statusMap = map[models.RawStatus]models.NormalizedStatus{
	models.RawStatusInitial:    models.StatusPending,
	models.RawStatusWaiting:    models.StatusScanned,
	models.RawStatusSuccessful: models.StatusApproved,
	models.RawStatusFailed:     models.StatusFailed,
	models.RawStatusExpired:    models.StatusExpired,
}

// NormalizeStatus maps a provider status to its local form. Unrecognized
// values are a protocol error, never passed through unmapped.
func NormalizeStatus(raw models.RawStatus) (models.NormalizedStatus, error) {
	normalized, ok := statusMap[raw]
	if !ok {
		return "", fmt.Errorf("unrecognized verification status %q", raw)
	}
	return normalized, nil
}
