package repositories

import (
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/00Thor/CCPUR-sub000/internal/db"
)

// psql builds Postgres ($n) statements
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository               *UserRepository
	PasswordResetTokenRepository *PasswordResetTokenRepository
	ApplicationRepository        *ApplicationRepository
	StudentRepository            *StudentRepository
	SemesterRepository           *SemesterRepository
	AcademicRecordRepository     *AcademicRecordRepository
	FeeRepository                *FeeRepository
	PaymentRepository            *PaymentRepository
	FileRepository               *FileRepository
	BlobDeletionRepository       *BlobDeletionRepository
}

// NewRepositories initializes all repositories on the shared pool
func NewRepositories(conn db.DBTX) *Repositories {
	return &Repositories{
		UserRepository:               NewUserRepository(conn),
		PasswordResetTokenRepository: NewPasswordResetTokenRepository(conn),
		ApplicationRepository:        NewApplicationRepository(conn),
		StudentRepository:            NewStudentRepository(conn),
		SemesterRepository:           NewSemesterRepository(conn),
		AcademicRecordRepository:     NewAcademicRecordRepository(conn),
		FeeRepository:                NewFeeRepository(conn),
		PaymentRepository:            NewPaymentRepository(conn),
		FileRepository:               NewFileRepository(conn),
		BlobDeletionRepository:       NewBlobDeletionRepository(conn),
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
