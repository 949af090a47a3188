package sources

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{
		KindSale, KindPayment, KindJournal, KindMachineWorkLog,
		KindSettlement, KindCropCycleSettlement,
		KindReversal, KindCorrection, KindCorrectionReversal,
	} {
		require.True(t, k.Valid(), string(k))
	}
	require.False(t, Kind("INVOICE").Valid())
	require.False(t, Kind("").Valid())
	require.False(t, Kind("sale").Valid(), "kinds are case sensitive")
}

func TestIsReversalKind(t *testing.T) {
	require.True(t, KindReversal.IsReversalKind())
	require.True(t, KindCorrectionReversal.IsReversalKind())

	require.False(t, KindSale.IsReversalKind())
	require.False(t, KindCorrection.IsReversalKind(), "the replacement group is a normal posting")
	require.False(t, KindSettlement.IsReversalKind())
}
