package medicines

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/lifeplus/internal/domain/medicine"
	"github.com/geocoder89/lifeplus/internal/repo/memory"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func TestService_CRUDAndOwnership(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	svc := NewService(s.Medicines())

	last := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	v, err := svc.Create(ctx, "alice", medicine.CreateRequest{
		Name:          "Ibuprofen",
		Type:          medicine.TypePill,
		IntervalHours: 6,
		LastTakenAt:   &last,
		ContinuousUse: boolPtr(false),
		TotalPills:    intPtr(20),
		PillsPerDose:  intPtr(1),
	})
	require.NoError(t, err)
	require.NotNil(t, v.NextDoseAt)
	require.True(t, v.NextDoseAt.Equal(last.Add(6*time.Hour)))

	_, err = svc.Get(ctx, v.ID, "bob")
	require.ErrorIs(t, err, medicine.ErrNotFound)

	name := "Ibuprofen 400"
	_, err = svc.Update(ctx, v.ID, "bob", medicine.UpdateRequest{Name: &name})
	require.ErrorIs(t, err, medicine.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, v.ID, "bob"), medicine.ErrNotFound)

	got, err := svc.Update(ctx, v.ID, "alice", medicine.UpdateRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, got.Name)
	require.True(t, got.LastTakenAt.Equal(last))

	list, err := svc.List(ctx, "bob")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestService_TypeSwitchClearsStock(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore().Medicines())

	v, err := svc.Create(ctx, "alice", medicine.CreateRequest{
		Name: "Syrup", Type: medicine.TypePill, IntervalHours: 12, ContinuousUse: boolPtr(true),
		TotalPills: intPtr(10), PillsPerDose: intPtr(2),
	})
	require.NoError(t, err)

	liquid := medicine.TypeLiquid
	ml := 5.0
	got, err := svc.Update(ctx, v.ID, "alice", medicine.UpdateRequest{Type: &liquid, MlPerDose: &ml})
	require.NoError(t, err)
	require.Nil(t, got.TotalPills)
	require.Nil(t, got.PillsPerDose)
	require.Equal(t, 5.0, *got.MlPerDose)
}

func TestService_RejectsMismatchedStock(t *testing.T) {
	ml := 10.0
	_, err := NewService(memory.NewStore().Medicines()).Create(context.Background(), "alice", medicine.CreateRequest{
		Name: "x", Type: medicine.TypePill, IntervalHours: 4, ContinuousUse: boolPtr(false), TotalMl: &ml,
	})
	require.ErrorIs(t, err, medicine.ErrInvalidStock)
}

func TestService_DeleteCascadesHistory(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	svc := NewService(s.Medicines())

	v, err := svc.Create(ctx, "alice", medicine.CreateRequest{Name: "x", Type: medicine.TypeLiquid, IntervalHours: 4, ContinuousUse: boolPtr(false)})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		at := time.Date(2026, 1, 1, i, 0, 0, 0, time.UTC)
		_, err := s.Medicines().RecordDose(ctx, v.ID, func(medicine.Medicine) (medicine.HistoryEntry, error) {
			return medicine.NewHistoryEntry(v.ID, at, false), nil
		})
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, v.ID, "alice")
	require.NoError(t, err)
	require.Len(t, got.History, 3)
	require.True(t, got.History[0].TakenAt.After(got.History[2].TakenAt))

	require.NoError(t, svc.Delete(ctx, v.ID, "alice"))
	_, meds, hist, _, _ := s.Counts()
	require.Zero(t, meds)
	require.Zero(t, hist)
}
