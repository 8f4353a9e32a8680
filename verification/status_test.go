package verification

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		raw  models.RawStatus
		want models.NormalizedStatus
	}{
		{models.RawStatusInitial, models.StatusPending},
		{models.RawStatusWaiting, models.StatusScanned},
		{models.RawStatusSuccessful, models.StatusApproved},
		{models.RawStatusFailed, models.StatusFailed},
		{models.RawStatusExpired, models.StatusExpired},
	}
	for _, c := range cases {
		got, err := NormalizeStatus(c.raw)
		require.NoError(t, err)
		require.Equal(t, c.want, got)
	}
}

func TestNormalizeStatusUnknown(t *testing.T) {
	_, err := NormalizeStatus("VERIFICATION_PENDING_REVIEW")
	require.ErrorContains(t, err, "unrecognized verification status")
}
