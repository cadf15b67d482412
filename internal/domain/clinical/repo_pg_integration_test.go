//go:build integration

package clinical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/internal/platform/db/dbtest"
)

func TestMain(m *testing.M) { dbtest.Main(m) }

func TestMedicalRecordRepoPG_AttachmentsAndArchive(t *testing.T) {
	pool := dbtest.New(t)
	svc := NewService(NewMedicalRecordRepo(pool), NewPrescriptionRepo(pool), db.NewTransactor(pool), nil)
	ctx := context.Background()
	patientID := dbtest.InsertPatient(t, pool, "Dora")

	rec := &MedicalRecord{
		PatientID: patientID,
		Diagnosis: "Hypertension",
		Treatment: "Lifestyle changes",
		Attachments: []Attachment{
			{Name: "ecg.pdf", Type: "application/pdf", Size: 2048},
		},
	}
	require.NoError(t, svc.CreateRecord(ctx, rec))
	assert.False(t, rec.VisitDate.IsZero())

	got, err := svc.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "ecg.pdf", got.Attachments[0].Name)
	assert.EqualValues(t, 2048, got.Attachments[0].Size)

	_, err = svc.ArchiveRecord(ctx, rec.ID)
	require.NoError(t, err)

	_, total, err := svc.ListRecords(ctx, RecordFilter{PatientID: patientID}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	items, total, err := svc.ListRecords(ctx, RecordFilter{PatientID: patientID, IncludeArchived: true}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.NotNil(t, items[0].ArchivedAt)

	got.Diagnosis = "Revised"
	assert.ErrorIs(t, svc.UpdateRecord(ctx, got), ErrRecordArchived)
}

func TestPrescriptionRepoPG_ListsRoundTrip(t *testing.T) {
	pool := dbtest.New(t)
	svc := NewService(NewMedicalRecordRepo(pool), NewPrescriptionRepo(pool), db.NewTransactor(pool), nil)
	ctx := context.Background()
	patientID := dbtest.InsertPatient(t, pool, "Eve")
	doctorID := dbtest.InsertDoctor(t, pool, "cuddy")

	p := &Prescription{
		PatientID: patientID,
		DoctorID:  doctorID,
		Medicines: []string{"Lisinopril", "Aspirin"},
		Dosage:    []string{"10mg daily", "81mg daily"},
		Duration:  []string{"30 days", "90 days"},
	}
	require.NoError(t, svc.CreatePrescription(ctx, p))

	got, err := svc.GetPrescription(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Medicines, got.Medicines)
	assert.Equal(t, p.Dosage, got.Dosage)
	assert.Equal(t, p.Duration, got.Duration)
	assert.Equal(t, PrescriptionActive, got.Status)

	_, err = svc.CancelPrescription(ctx, p.ID)
	require.NoError(t, err)

	items, total, err := svc.ListPrescriptions(ctx, PrescriptionFilter{DoctorID: doctorID, Status: PrescriptionCancelled}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, p.ID, items[0].ID)
}
