package services

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/00Thor/CCPUR-sub000/internal/app/auth"
	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/repositories"
	"github.com/00Thor/CCPUR-sub000/internal/db"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/email"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/notify"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/payment"
)

// memStore is an in-memory stand-in for the database. Each map holds its own
// copies of the rows so a snapshot can be restored on rollback.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	clock  time.Time

	users        map[int64]*models.User
	resetTokens  map[string]*models.PasswordResetToken
	applications map[int64]*models.Application
	students     map[int64]*models.Student
	semesters    map[int64]*models.Semester
	records      map[int64]*models.AcademicRecord
	fees         map[string]*models.FeeStructure
	payments     map[int64]*models.Payment
	files        map[int64]*models.StoredFile
	blobs        map[int64]*models.BlobDeletion

	// failures injects an error into the named repository operation
	failures map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		clock:        time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		users:        map[int64]*models.User{},
		resetTokens:  map[string]*models.PasswordResetToken{},
		applications: map[int64]*models.Application{},
		students:     map[int64]*models.Student{},
		semesters:    map[int64]*models.Semester{},
		records:      map[int64]*models.AcademicRecord{},
		fees:         map[string]*models.FeeStructure{},
		payments:     map[int64]*models.Payment{},
		files:        map[int64]*models.StoredFile{},
		blobs:        map[int64]*models.BlobDeletion{},
		failures:     map[string]error{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) fail(op string) error {
	return m.failures[op]
}

func (m *memStore) setFailure(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

func cloneMap[K comparable, V any](in map[K]*V) map[K]*V {
	out := make(map[K]*V, len(in))
	for k, v := range in {
		c := *v
		out[k] = &c
	}
	return out
}

type memSnapshot struct {
	nextID int64
	clock  time.Time
	data   *memStore
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memSnapshot{
		nextID: m.nextID,
		clock:  m.clock,
		data: &memStore{
			users:        cloneMap(m.users),
			resetTokens:  cloneMap(m.resetTokens),
			applications: cloneMap(m.applications),
			students:     cloneMap(m.students),
			semesters:    cloneMap(m.semesters),
			records:      cloneMap(m.records),
			fees:         cloneMap(m.fees),
			payments:     cloneMap(m.payments),
			files:        cloneMap(m.files),
			blobs:        cloneMap(m.blobs),
		},
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = s.data.users
	m.resetTokens = s.data.resetTokens
	m.applications = s.data.applications
	m.students = s.data.students
	m.semesters = s.data.semesters
	m.records = s.data.records
	m.fees = s.data.fees
	m.payments = s.data.payments
	m.files = s.data.files
	m.blobs = s.data.blobs
}

// fakeTransactor serialises transactions, which stands in for row locks, and
// restores the store when fn fails.
type fakeTransactor struct {
	store *memStore
	txMu  sync.Mutex

	mu        sync.Mutex
	commits   int
	rollbacks int
}

func (t *fakeTransactor) WithTransaction(ctx context.Context, fn db.TransactionFn) error {
	t.txMu.Lock()
	defer t.txMu.Unlock()

	snap := t.store.snapshot()
	if err := fn(ctx, nil); err != nil {
		t.store.restore(snap)
		t.mu.Lock()
		t.rollbacks++
		t.mu.Unlock()
		return err
	}
	t.mu.Lock()
	t.commits++
	t.mu.Unlock()
	return nil
}

// --- users ---

type fakeUserRepo struct{ m *memStore }

func (r *fakeUserRepo) WithTx(pgx.Tx) repositories.IUserRepository { return r }

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("users.Create"); err != nil {
		return 0, err
	}
	user.Email = strings.ToLower(user.Email)
	for _, u := range r.m.users {
		if u.Email == user.Email {
			return 0, apperrors.ErrEmailAlreadyExists
		}
	}
	user.ID = r.m.id()
	user.CreatedAt = r.m.tick()
	user.UpdatedAt = user.CreatedAt
	c := *user
	r.m.users[user.ID] = &c
	return user.ID, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == strings.ToLower(email) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID int64, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.Password = hash
	return nil
}

// --- password reset tokens ---

type fakeResetRepo struct{ m *memStore }

func (r *fakeResetRepo) WithTx(pgx.Tx) repositories.IPasswordResetTokenRepository { return r }

func (r *fakeResetRepo) CreateToken(_ context.Context, userID int64, token string, expiresAt time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.resetTokens[token] = &models.PasswordResetToken{
		ID: r.m.id(), UserID: userID, Token: token, ExpiresAt: expiresAt, CreatedAt: r.m.tick(),
	}
	return nil
}

func (r *fakeResetRepo) GetForUpdate(_ context.Context, token string) (*models.PasswordResetToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.resetTokens[token]
	if !ok {
		return nil, apperrors.ErrInvalidPasswordResetToken
	}
	c := *t
	return &c, nil
}

func (r *fakeResetRepo) MarkTokenAsUsed(_ context.Context, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.resetTokens[token]; ok {
		t.Used = true
	}
	return nil
}

func (r *fakeResetRepo) DeleteTokensByUserID(_ context.Context, userID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for k, t := range r.m.resetTokens {
		if t.UserID == userID {
			delete(r.m.resetTokens, k)
		}
	}
	return nil
}

func (r *fakeResetRepo) DeleteExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for k, t := range r.m.resetTokens {
		if t.Used || t.Expired(now) {
			delete(r.m.resetTokens, k)
			n++
		}
	}
	return n, nil
}

// --- applications ---

type fakeApplicationRepo struct{ m *memStore }

func (r *fakeApplicationRepo) WithTx(pgx.Tx) repositories.IApplicationRepository { return r }

func (r *fakeApplicationRepo) Create(_ context.Context, app *models.Application) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("applications.Create"); err != nil {
		return 0, err
	}
	app.ID = r.m.id()
	app.Status = models.ApplicationPending
	app.CreatedAt = r.m.tick()
	app.UpdatedAt = app.CreatedAt
	c := *app
	r.m.applications[app.ID] = &c
	return app.ID, nil
}

func (r *fakeApplicationRepo) GetByID(_ context.Context, id int64) (*models.Application, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.applications[id]
	if !ok {
		return nil, apperrors.ErrApplicationNotFound
	}
	c := *a
	return &c, nil
}

func (r *fakeApplicationRepo) GetForUpdate(ctx context.Context, id int64) (*models.Application, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeApplicationRepo) UpdateEducational(_ context.Context, id, userID int64, edu *models.EducationalDetails) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.applications[id]
	if !ok || a.UserID != userID {
		return apperrors.ErrApplicationNotFound
	}
	c := *edu
	a.Educational = &c
	return nil
}

func (r *fakeApplicationRepo) SetStatus(_ context.Context, id int64, status models.ApplicationStatus, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("applications.SetStatus"); err != nil {
		return err
	}
	a, ok := r.m.applications[id]
	if !ok {
		return apperrors.ErrApplicationNotFound
	}
	a.Status = status
	switch status {
	case models.ApplicationApproved:
		a.AcceptedAt = &at
	case models.ApplicationRejected:
		a.RejectedAt = &at
	}
	return nil
}

func (r *fakeApplicationRepo) List(_ context.Context, filter models.ApplicationFilter) ([]*models.Application, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []*models.Application
	for _, a := range r.m.applications {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Course != "" && a.Course != filter.Course {
			continue
		}
		c := *a
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	start := int(filter.Offset)
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// --- students ---

type fakeStudentRepo struct{ m *memStore }

func (r *fakeStudentRepo) WithTx(pgx.Tx) repositories.IStudentRepository { return r }

func (r *fakeStudentRepo) Create(_ context.Context, student *models.Student) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("students.Create"); err != nil {
		return 0, err
	}
	for _, s := range r.m.students {
		if s.ApplicationID == student.ApplicationID {
			return 0, apperrors.NewConflictError("a student already exists for this application")
		}
	}
	student.ID = r.m.id()
	student.CreatedAt = r.m.tick()
	student.UpdatedAt = student.CreatedAt
	c := *student
	r.m.students[student.ID] = &c
	return student.ID, nil
}

func (r *fakeStudentRepo) GetByID(_ context.Context, id int64) (*models.Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.students[id]
	if !ok {
		return nil, apperrors.ErrStudentNotFound
	}
	c := *s
	return &c, nil
}

func (r *fakeStudentRepo) GetByUserID(_ context.Context, userID int64) (*models.Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.students {
		if s.UserID == userID {
			c := *s
			return &c, nil
		}
	}
	return nil, apperrors.ErrStudentNotFound
}

func (r *fakeStudentRepo) GetForUpdate(ctx context.Context, id int64) (*models.Student, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeStudentRepo) SetSemester(_ context.Context, id int64, semester int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.students[id]
	if !ok {
		return apperrors.ErrStudentNotFound
	}
	s.CurrentSemester = semester
	return nil
}

func (r *fakeStudentRepo) Graduate(_ context.Context, id int64, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.students[id]
	if !ok {
		return apperrors.ErrStudentNotFound
	}
	s.Status = models.StudentGraduated
	s.GraduatedAt = &at
	return nil
}

// --- semesters ---

type fakeSemesterRepo struct{ m *memStore }

func (r *fakeSemesterRepo) WithTx(pgx.Tx) repositories.ISemesterRepository { return r }

func (r *fakeSemesterRepo) GetByName(_ context.Context, name string) (*models.Semester, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.semesters {
		if strings.EqualFold(s.Name, name) {
			c := *s
			return &c, nil
		}
	}
	return nil, apperrors.ErrSemesterNotFound
}

func (r *fakeSemesterRepo) List(_ context.Context) ([]*models.Semester, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*models.Semester, 0, len(r.m.semesters))
	for _, s := range r.m.semesters {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *fakeSemesterRepo) Upsert(_ context.Context, semester *models.Semester) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.semesters {
		if s.Number == semester.Number {
			s.Name = semester.Name
			semester.ID = s.ID
			return nil
		}
	}
	semester.ID = r.m.id()
	c := *semester
	r.m.semesters[semester.ID] = &c
	return nil
}

// --- academic records ---

type fakeRecordRepo struct{ m *memStore }

func (r *fakeRecordRepo) WithTx(pgx.Tx) repositories.IAcademicRecordRepository { return r }

func (r *fakeRecordRepo) Create(_ context.Context, record *models.AcademicRecord) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.students[record.StudentID]; !ok {
		return 0, apperrors.ErrStudentNotFound
	}
	for _, rec := range r.m.records {
		if rec.StudentID == record.StudentID && rec.SemesterID == record.SemesterID {
			return 0, apperrors.NewConflictError("an academic record for this semester already exists")
		}
	}
	record.ID = r.m.id()
	record.CreatedAt = r.m.tick()
	record.UpdatedAt = record.CreatedAt
	c := *record
	c.Subjects = nil
	if sem, ok := r.m.semesters[record.SemesterID]; ok {
		c.SemesterName, c.SemesterNumber = sem.Name, sem.Number
	}
	r.m.records[record.ID] = &c
	return record.ID, nil
}

func (r *fakeRecordRepo) InsertSubjects(_ context.Context, recordID int64, subjects []models.AcademicSubject) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("records.InsertSubjects"); err != nil {
		return err
	}
	rec, ok := r.m.records[recordID]
	if !ok {
		return apperrors.ErrAcademicRecordNotFound
	}
	next := append([]models.AcademicSubject{}, rec.Subjects...)
	for _, s := range subjects {
		s.ID = r.m.id()
		s.RecordID = recordID
		next = append(next, s)
	}
	rec.Subjects = next
	return nil
}

func (r *fakeRecordRepo) DeleteSubjects(_ context.Context, recordID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if rec, ok := r.m.records[recordID]; ok {
		rec.Subjects = nil
	}
	return nil
}

func (r *fakeRecordRepo) GetLatest(_ context.Context, studentID int64) (*models.AcademicRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var latest *models.AcademicRecord
	for _, rec := range r.m.records {
		if rec.StudentID == studentID && (latest == nil || rec.SemesterNumber > latest.SemesterNumber) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, apperrors.ErrAcademicRecordNotFound
	}
	c := *latest
	c.Subjects = nil
	return &c, nil
}

func (r *fakeRecordRepo) GetBySemester(_ context.Context, studentID, semesterID int64) (*models.AcademicRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rec := range r.m.records {
		if rec.StudentID == studentID && rec.SemesterID == semesterID {
			c := *rec
			c.Subjects = nil
			return &c, nil
		}
	}
	return nil, apperrors.ErrAcademicRecordNotFound
}

func (r *fakeRecordRepo) Update(_ context.Context, recordID int64, upd models.AcademicRecordUpdate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rec, ok := r.m.records[recordID]
	if !ok {
		return apperrors.ErrAcademicRecordNotFound
	}
	applyRecordUpdate(rec, upd)
	return nil
}

func (r *fakeRecordRepo) ListByStudent(_ context.Context, studentID int64) ([]*models.AcademicRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*models.AcademicRecord, 0)
	for _, rec := range r.m.records {
		if rec.StudentID == studentID {
			c := *rec
			c.Subjects = append([]models.AcademicSubject{}, rec.Subjects...)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SemesterNumber < out[j].SemesterNumber })
	return out, nil
}

func (r *fakeRecordRepo) DeleteByStudent(_ context.Context, studentID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, rec := range r.m.records {
		if rec.StudentID == studentID {
			delete(r.m.records, id)
			n++
		}
	}
	return n, nil
}

// --- fees ---

type fakeFeeRepo struct{ m *memStore }

func (r *fakeFeeRepo) WithTx(pgx.Tx) repositories.IFeeRepository { return r }

func feeKey(paymentType, course string) string { return paymentType + "|" + course }

func (r *fakeFeeRepo) GetFee(_ context.Context, paymentType, course string) (*models.FeeStructure, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	f, ok := r.m.fees[feeKey(paymentType, course)]
	if !ok {
		return nil, apperrors.ErrFeeNotFound
	}
	c := *f
	return &c, nil
}

func (r *fakeFeeRepo) List(_ context.Context) ([]*models.FeeStructure, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*models.FeeStructure, 0, len(r.m.fees))
	for _, f := range r.m.fees {
		c := *f
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakeFeeRepo) Upsert(_ context.Context, fee *models.FeeStructure) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if existing, ok := r.m.fees[feeKey(fee.PaymentType, fee.Course)]; ok {
		existing.Amount = fee.Amount
		fee.ID = existing.ID
		return nil
	}
	fee.ID = r.m.id()
	c := *fee
	r.m.fees[feeKey(fee.PaymentType, fee.Course)] = &c
	return nil
}

// --- payments ---

type fakePaymentRepo struct{ m *memStore }

func (r *fakePaymentRepo) WithTx(pgx.Tx) repositories.IPaymentRepository { return r }

func (r *fakePaymentRepo) Create(_ context.Context, p *models.Payment) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if p.TransactionID != nil {
		for _, existing := range r.m.payments {
			if existing.TransactionID != nil && *existing.TransactionID == *p.TransactionID {
				return 0, apperrors.NewConflictError("payment transaction already recorded")
			}
		}
	}
	p.ID = r.m.id()
	p.CreatedAt = r.m.tick()
	p.UpdatedAt = p.CreatedAt
	c := *p
	r.m.payments[p.ID] = &c
	return p.ID, nil
}

func (r *fakePaymentRepo) find(match func(*models.Payment) bool) (*models.Payment, error) {
	var found *models.Payment
	for _, p := range r.m.payments {
		if match(p) && (found == nil || p.ID > found.ID) {
			found = p
		}
	}
	if found == nil {
		return nil, apperrors.ErrPaymentNotFound
	}
	return found, nil
}

func (r *fakePaymentRepo) GetByID(_ context.Context, id int64) (*models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, err := r.find(func(p *models.Payment) bool { return p.ID == id })
	if err != nil {
		return nil, err
	}
	c := *p
	return &c, nil
}

func (r *fakePaymentRepo) GetByTransactionID(_ context.Context, transactionID string) (*models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, err := r.find(func(p *models.Payment) bool {
		return p.TransactionID != nil && *p.TransactionID == transactionID
	})
	if err != nil {
		return nil, err
	}
	c := *p
	return &c, nil
}

func (r *fakePaymentRepo) GetPendingByOrderForUpdate(_ context.Context, orderID string) (*models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, err := r.find(func(p *models.Payment) bool {
		return p.RazorpayOrderID == orderID && p.Status == models.PaymentPending
	})
	if err != nil {
		return nil, err
	}
	c := *p
	return &c, nil
}

func (r *fakePaymentRepo) MarkPaid(_ context.Context, id int64, transactionID, method string, amount float64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok {
		return apperrors.ErrPaymentNotFound
	}
	p.Status = models.PaymentPaid
	p.TransactionID = &transactionID
	p.Method = method
	p.Amount = amount
	return nil
}

func (r *fakePaymentRepo) MarkFailedByOrder(_ context.Context, orderID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, p := range r.m.payments {
		if p.RazorpayOrderID == orderID && p.Status == models.PaymentPending {
			p.Status = models.PaymentFailed
			n++
		}
	}
	return n, nil
}

func refMatches(p *models.Payment, ref models.PaymentRef) bool {
	if ref.StudentID != nil {
		return p.StudentID != nil && *p.StudentID == *ref.StudentID
	}
	if ref.ApplicationID != nil {
		return p.ApplicationID != nil && *p.ApplicationID == *ref.ApplicationID
	}
	return false
}

func (r *fakePaymentRepo) UpdateLatestStatus(_ context.Context, ref models.PaymentRef, status models.PaymentStatus) (*models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, err := r.find(func(p *models.Payment) bool { return refMatches(p, ref) })
	if err != nil {
		return nil, err
	}
	p.Status = status
	c := *p
	return &c, nil
}

func (r *fakePaymentRepo) ListByRef(_ context.Context, ref models.PaymentRef) ([]*models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*models.Payment, 0)
	for _, p := range r.m.payments {
		if refMatches(p, ref) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakePaymentRepo) ExpirePending(_ context.Context, createdBefore time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, p := range r.m.payments {
		if p.Status == models.PaymentPending && p.CreatedAt.Before(createdBefore) {
			p.Status = models.PaymentFailed
			n++
		}
	}
	return n, nil
}

// --- files ---

type fakeFileRepo struct{ m *memStore }

func (r *fakeFileRepo) WithTx(pgx.Tx) repositories.IFileRepository { return r }

func (r *fakeFileRepo) Create(_ context.Context, file *models.StoredFile) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail("files.Create"); err != nil {
		return 0, err
	}
	file.ID = r.m.id()
	file.CreatedAt = r.m.tick()
	c := *file
	r.m.files[file.ID] = &c
	return file.ID, nil
}

func (r *fakeFileRepo) collect(match func(*models.StoredFile) bool) []*models.StoredFile {
	out := make([]*models.StoredFile, 0)
	for _, f := range r.m.files {
		if match(f) {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeFileRepo) ListByOwner(_ context.Context, kind models.OwnerKind, ownerID int64) ([]*models.StoredFile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.collect(func(f *models.StoredFile) bool { return f.OwnerKind == kind && f.OwnerID == ownerID }), nil
}

func (r *fakeFileRepo) ListSlotForUpdate(_ context.Context, kind models.OwnerKind, ownerID int64, slot string) ([]*models.StoredFile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.collect(func(f *models.StoredFile) bool {
		return f.OwnerKind == kind && f.OwnerID == ownerID && f.Slot == slot
	}), nil
}

func (r *fakeFileRepo) DeleteByIDs(_ context.Context, ids []int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, id := range ids {
		delete(r.m.files, id)
	}
	return nil
}

func (r *fakeFileRepo) DeleteByURL(_ context.Context, kind models.OwnerKind, ownerID int64, slot, url string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, f := range r.m.files {
		if f.OwnerKind == kind && f.OwnerID == ownerID && f.Slot == slot && f.FileURL == url {
			delete(r.m.files, id)
			return nil
		}
	}
	return apperrors.ErrFileNotFound
}

func (r *fakeFileRepo) Reassign(_ context.Context, fromKind models.OwnerKind, fromID int64, toKind models.OwnerKind, toID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, f := range r.m.files {
		if f.OwnerKind == fromKind && f.OwnerID == fromID {
			f.OwnerKind, f.OwnerID = toKind, toID
			n++
		}
	}
	return n, nil
}

// --- blob deletion outbox ---

type fakeBlobRepo struct{ m *memStore }

func (r *fakeBlobRepo) WithTx(pgx.Tx) repositories.IBlobDeletionRepository { return r }

func (r *fakeBlobRepo) Enqueue(_ context.Context, urls ...string) ([]int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ids := make([]int64, 0, len(urls))
	for _, u := range urls {
		d := &models.BlobDeletion{ID: r.m.id(), BlobURL: u, CreatedAt: r.m.tick()}
		r.m.blobs[d.ID] = d
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (r *fakeBlobRepo) ListPending(_ context.Context, limit, maxAttempts int) ([]*models.BlobDeletion, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]*models.BlobDeletion, 0)
	for _, d := range r.m.blobs {
		if d.DoneAt == nil && d.Attempts < maxAttempts {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeBlobRepo) MarkDone(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if d, ok := r.m.blobs[id]; ok {
		now := r.m.tick()
		d.DoneAt = &now
		d.Attempts++
		d.LastError = nil
	}
	return nil
}

func (r *fakeBlobRepo) MarkFailed(_ context.Context, id int64, reason string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if d, ok := r.m.blobs[id]; ok {
		d.Attempts++
		d.LastError = &reason
	}
	return nil
}

// --- collaborators ---

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, msg email.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, msg)
	return nil
}

func (d *fakeDispatcher) messages() []email.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]email.Message(nil), d.sent...)
}

type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	orders    map[string]*payment.Order
	payments  map[string]*payment.Details
	createErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: map[string]*payment.Order{}, payments: map[string]*payment.Details{}}
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	o := &payment.Order{
		ID:       "order_" + strconv.Itoa(g.seq),
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
		Notes:    notes,
	}
	g.orders[o.ID] = o
	return o, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, orderID string) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return o, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*payment.Details, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (g *fakeGateway) VerifyWebhookSignature(_ []byte, signature string) bool {
	return signature == "valid-signature"
}

// pay records a gateway payment against orderID and returns its id
func (g *fakeGateway) pay(orderID, status string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	o := g.orders[orderID]
	id := "pay_" + strconv.Itoa(g.seq)
	d := &payment.Details{ID: id, OrderID: orderID, Status: status, Method: "upi"}
	if o != nil {
		d.Amount, d.Currency = o.Amount, o.Currency
	}
	g.payments[id] = d
	return id
}

type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	putErr    error
	deleteErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (s *fakeBlobStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	url := "mem://" + key
	s.objects[url] = data
	return url, nil
}

func (s *fakeBlobStore) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, url)
	s.deleted = append(s.deleted, url)
	return nil
}

func (s *fakeBlobStore) has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[url]
	return ok
}

func (s *fakeBlobStore) setDeleteErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}

// testEnv wires fakes into every service
type testEnv struct {
	store      *memStore
	tx         *fakeTransactor
	users      *fakeUserRepo
	resets     *fakeResetRepo
	apps       *fakeApplicationRepo
	students   *fakeStudentRepo
	semesters  *fakeSemesterRepo
	records    *fakeRecordRepo
	fees       *fakeFeeRepo
	payments   *fakePaymentRepo
	files      *fakeFileRepo
	blobRepo   *fakeBlobRepo
	dispatcher *fakeDispatcher
	notifier   *notify.Notifier
	gateway    *fakeGateway
	blobs      *fakeBlobStore
	authz      *auth.AuthorizationService
	logger     zerolog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	m := newMemStore()
	env := &testEnv{
		store:      m,
		tx:         &fakeTransactor{store: m},
		users:      &fakeUserRepo{m},
		resets:     &fakeResetRepo{m},
		apps:       &fakeApplicationRepo{m},
		students:   &fakeStudentRepo{m},
		semesters:  &fakeSemesterRepo{m},
		records:    &fakeRecordRepo{m},
		fees:       &fakeFeeRepo{m},
		payments:   &fakePaymentRepo{m},
		files:      &fakeFileRepo{m},
		blobRepo:   &fakeBlobRepo{m},
		dispatcher: &fakeDispatcher{},
		gateway:    newFakeGateway(),
		blobs:      newFakeBlobStore(),
		logger:     zerolog.Nop(),
	}
	env.notifier = notify.NewNotifier(env.dispatcher, "https://portal.test", "Test College")
	env.authz = auth.NewAuthorizationService(env.apps, env.students, env.logger)
	return env
}

var staff = models.Actor{UserID: 9000, Email: "registrar@college.test", Role: models.RoleStaff}

func (e *testEnv) seedUser(t *testing.T, emailAddr string, role models.RoleType) models.Actor {
	t.Helper()
	u := &models.User{Email: emailAddr, FullName: "Test User", RoleType: role, IsActive: true}
	if _, err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return models.Actor{UserID: u.ID, Email: u.Email, Role: role}
}

func (e *testEnv) seedSemesters(t *testing.T) {
	t.Helper()
	names := []string{"First", "Second", "Third", "Fourth", "Fifth", "Sixth"}
	for i, n := range names {
		if err := e.semesters.Upsert(context.Background(), &models.Semester{Name: n, Number: i + 1}); err != nil {
			t.Fatalf("seed semester: %v", err)
		}
	}
}

func (e *testEnv) seedStudent(t *testing.T, owner models.Actor, semester int) *models.Student {
	t.Helper()
	s := &models.Student{
		UserID:          owner.UserID,
		ApplicationID:   e.store.nextID + 1000,
		CurrentSemester: semester,
		Status:          models.StudentActive,
	}
	s.Email = owner.Email
	if _, err := e.students.Create(context.Background(), s); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return s
}

func (e *testEnv) studentSemester(t *testing.T, id int64) int {
	t.Helper()
	s, err := e.students.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load student: %v", err)
	}
	return s.CurrentSemester
}

func (e *testEnv) count(kind string) int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	switch kind {
	case "applications":
		return len(e.store.applications)
	case "students":
		return len(e.store.students)
	case "payments":
		return len(e.store.payments)
	case "files":
		return len(e.store.files)
	case "blobs":
		return len(e.store.blobs)
	case "records":
		return len(e.store.records)
	}
	return -1
}
