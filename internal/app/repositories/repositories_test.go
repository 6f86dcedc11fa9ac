package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO users \(email,password,full_name,role_type,is_active\)`).
		WithArgs("asha@example.com", "hash", "Asha Devi", pgxmock.AnyArg(), true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	u := &models.User{Email: "  Asha@Example.com ", Password: "hash", FullName: "Asha Devi", RoleType: models.RoleStudent, IsActive: true}
	id, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, "asha@example.com", u.Email)
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("a@example.com", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrEmailAlreadyExists)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestUserRepository_GetByEmailNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1 LIMIT 1`).
		WithArgs("asha@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ASHA@example.com")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestApplicationRepository_UpdateEducationalNotOwned(t *testing.T) {
	mock := newMock(t)
	repo := NewApplicationRepository(mock)

	mock.ExpectExec(`UPDATE applications SET educational_details = \$1, updated_at = NOW\(\) WHERE id = \$2 AND user_id = \$3`).
		WithArgs(pgxmock.AnyArg(), int64(3), int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateEducational(context.Background(), 3, 9, &models.EducationalDetails{})
	assert.ErrorIs(t, err, apperrors.ErrApplicationNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestApplicationRepository_SetStatusApproved(t *testing.T) {
	mock := newMock(t)
	repo := NewApplicationRepository(mock)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE applications SET status = \$1, updated_at = \$2, accepted_at = \$3 WHERE id = \$4`).
		WithArgs(models.ApplicationApproved, at, at, int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetStatus(context.Background(), 5, models.ApplicationApproved, at))
}

func TestApplicationRepository_GetForUpdateLocksRow(t *testing.T) {
	mock := newMock(t)
	repo := NewApplicationRepository(mock)

	mock.ExpectQuery(`FROM applications WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetForUpdate(context.Background(), 42)
	assert.ErrorIs(t, err, apperrors.ErrApplicationNotFound)
}

func TestStudentRepository_GetForUpdateNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewStudentRepository(mock)

	mock.ExpectQuery(`FROM students WHERE id = \$1 ORDER BY id DESC LIMIT 1 FOR UPDATE`).
		WithArgs(int64(3)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetForUpdate(context.Background(), 3)
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)
}

func TestStudentRepository_SetSemester(t *testing.T) {
	mock := newMock(t)
	repo := NewStudentRepository(mock)

	mock.ExpectExec(`UPDATE students SET current_semester = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs(4, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.SetSemester(context.Background(), 3, 4))

	mock.ExpectExec(`UPDATE students SET current_semester`).
		WithArgs(4, int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.SetSemester(context.Background(), 99, 4), apperrors.ErrStudentNotFound)
}

func TestAcademicRecordRepository_UpdateUsesAllowList(t *testing.T) {
	mock := newMock(t)
	repo := NewAcademicRecordRepository(mock)

	course, year := "BSc Physics", 2026
	mock.ExpectExec(`UPDATE academic_records SET course = \$1, year = \$2, updated_at = NOW\(\) WHERE id = \$3`).
		WithArgs(course, year, int64(11)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Update(context.Background(), 11, models.AcademicRecordUpdate{Course: &course, Year: &year})
	require.NoError(t, err)

	// nothing to set issues no statement
	require.NoError(t, repo.Update(context.Background(), 11, models.AcademicRecordUpdate{}))
}

func TestAcademicRecordRepository_InsertSubjects(t *testing.T) {
	mock := newMock(t)
	repo := NewAcademicRecordRepository(mock)

	mock.ExpectExec(`INSERT INTO academic_subjects \(record_id,subject_name,grade,marks\) VALUES \(\$1,\$2,\$3,\$4\),\(\$5,\$6,\$7,\$8\)`).
		WithArgs(int64(2), "Maths", "A", 91.0, int64(2), "Physics", "B", 78.5).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	err := repo.InsertSubjects(context.Background(), 2, []models.AcademicSubject{
		{SubjectName: "Maths", Grade: "A", Marks: 91},
		{SubjectName: "Physics", Grade: "B", Marks: 78.5},
	})
	require.NoError(t, err)
	require.NoError(t, repo.InsertSubjects(context.Background(), 2, nil))
}

func TestAcademicRecordRepository_CreateDuplicateSemester(t *testing.T) {
	mock := newMock(t)
	repo := NewAcademicRecordRepository(mock)

	mock.ExpectQuery(`INSERT INTO academic_records`).
		WithArgs(int64(1), int64(2), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "academic_records_student_semester_key"})

	_, err := repo.Create(context.Background(), &models.AcademicRecord{StudentID: 1, SemesterID: 2})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestAcademicRecordRepository_DeleteByStudent(t *testing.T) {
	mock := newMock(t)
	repo := NewAcademicRecordRepository(mock)

	mock.ExpectExec(`DELETE FROM academic_subjects WHERE record_id IN`).
		WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec(`DELETE FROM academic_records WHERE student_id = \$1`).
		WithArgs(int64(8)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := repo.DeleteByStudent(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSemesterRepository_GetByNameNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewSemesterRepository(mock)

	mock.ExpectQuery(`SELECT id, name, number FROM semesters WHERE LOWER\(name\) = \$1`).
		WithArgs("semester 9").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByName(context.Background(), " Semester 9 ")
	assert.ErrorIs(t, err, apperrors.ErrSemesterNotFound)
}

func TestFeeRepository_GetFee(t *testing.T) {
	mock := newMock(t)
	repo := NewFeeRepository(mock)

	mock.ExpectQuery(`FROM fee_structures WHERE course = \$1 AND payment_type = \$2`).
		WithArgs("BSc", "admission").
		WillReturnRows(pgxmock.NewRows([]string{"id", "payment_type", "course", "amount"}).
			AddRow(int64(1), "admission", "BSc", 1500.0))

	fee, err := repo.GetFee(context.Background(), "admission", "BSc")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, fee.Amount)

	mock.ExpectQuery(`FROM fee_structures`).
		WithArgs("BSc", "hostel").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetFee(context.Background(), "hostel", "BSc")
	assert.ErrorIs(t, err, apperrors.ErrFeeNotFound)
}

func TestPaymentRepository_UpdateLatestStatus(t *testing.T) {
	mock := newMock(t)
	repo := NewPaymentRepository(mock)
	studentID := int64(4)

	mock.ExpectQuery(`UPDATE payments SET status = \$1, updated_at = NOW\(\) WHERE id = \(SELECT id FROM payments WHERE student_id = \$2 ORDER BY created_at DESC, id DESC LIMIT 1\) RETURNING id`).
		WithArgs(models.PaymentFailed, studentID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateLatestStatus(context.Background(), models.PaymentRef{StudentID: &studentID}, models.PaymentFailed)
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
}

func TestPaymentRepository_CreateWithoutSingleOwner(t *testing.T) {
	mock := newMock(t)
	repo := NewPaymentRepository(mock)

	args := make([]interface{}, 10)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectQuery(`INSERT INTO payments`).
		WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "payments_single_owner"})

	_, err := repo.Create(context.Background(), &models.Payment{RazorpayOrderID: "order_X", Amount: 1500, Status: models.PaymentPending})

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.HasField("studentId"))
	assert.True(t, verr.HasField("applicationId"))
}

func TestPaymentRepository_ExpirePending(t *testing.T) {
	mock := newMock(t)
	repo := NewPaymentRepository(mock)
	cutoff := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE payments SET status = \$1, updated_at = NOW\(\) WHERE status = \$2 AND created_at < \$3`).
		WithArgs(models.PaymentFailed, models.PaymentPending, cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.ExpirePending(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestFileRepository_DeleteByURLNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewFileRepository(mock)

	mock.ExpectExec(`DELETE FROM file_uploads WHERE`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.DeleteByURL(context.Background(), models.OwnerStudent, 1, "signature", "http://x/y.png")
	assert.ErrorIs(t, err, apperrors.ErrFileNotFound)
}

func TestFileRepository_Reassign(t *testing.T) {
	mock := newMock(t)
	repo := NewFileRepository(mock)

	mock.ExpectExec(`UPDATE file_uploads SET owner_kind = \$1, owner_id = \$2 WHERE owner_id = \$3 AND owner_kind = \$4`).
		WithArgs(models.OwnerStudent, int64(9), int64(3), models.OwnerApplication).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := repo.Reassign(context.Background(), models.OwnerApplication, 3, models.OwnerStudent, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBlobDeletionRepository_Enqueue(t *testing.T) {
	mock := newMock(t)
	repo := NewBlobDeletionRepository(mock)

	mock.ExpectQuery(`INSERT INTO blob_deletions \(blob_url\) VALUES \(\$1\),\(\$2\) RETURNING id`).
		WithArgs("a", "b").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	ids, err := repo.Enqueue(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	ids, err = repo.Enqueue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
