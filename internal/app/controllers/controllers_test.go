package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/app/models/dto"
	"github.com/00Thor/CCPUR-sub000/internal/middleware"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/apperrors"
	"github.com/00Thor/CCPUR-sub000/internal/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubApplicationService struct {
	approve func(id int64) (*dto.DecisionResponse, error)
	listed  struct {
		status     models.ApplicationStatus
		course     string
		page, size int
	}
}

func (s *stubApplicationService) SubmitPersonalDetails(ctx context.Context, actor models.Actor, req *dto.PersonalDetailsRequest) (int64, error) {
	return 42, nil
}

func (s *stubApplicationService) SubmitEducationalDetails(ctx context.Context, actor models.Actor, applicationID int64, req *dto.EducationalDetailsRequest) error {
	return nil
}

func (s *stubApplicationService) GetApplication(ctx context.Context, actor models.Actor, applicationID int64) (*models.Application, error) {
	return nil, apperrors.ErrApplicationNotFound
}

func (s *stubApplicationService) ListApplications(ctx context.Context, actor models.Actor, status models.ApplicationStatus, course string, page, size int) (*dto.ApplicationListResponse, error) {
	s.listed.status, s.listed.course, s.listed.page, s.listed.size = status, course, page, size
	return &dto.ApplicationListResponse{Applications: []*models.Application{}}, nil
}

func (s *stubApplicationService) Approve(ctx context.Context, actor models.Actor, applicationID int64) (*dto.DecisionResponse, error) {
	return s.approve(applicationID)
}

func (s *stubApplicationService) Reject(ctx context.Context, actor models.Actor, applicationID int64) (*dto.DecisionResponse, error) {
	return &dto.DecisionResponse{ApplicationID: applicationID, Status: models.ApplicationRejected}, nil
}

type stubPaymentService struct {
	body      []byte
	signature string
	ref       models.PaymentRef
}

func (s *stubPaymentService) CreateOrder(ctx context.Context, actor models.Actor, req *dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	return &dto.OrderResponse{OrderID: "order_1"}, nil
}

func (s *stubPaymentService) VerifyPayment(ctx context.Context, actor models.Actor, req *dto.VerifyPaymentRequest) (*models.Payment, error) {
	return nil, apperrors.ErrPaymentNotCaptured
}

func (s *stubPaymentService) UpdateStatus(ctx context.Context, actor models.Actor, req *dto.UpdatePaymentStatusRequest) (*models.Payment, error) {
	return nil, nil
}

func (s *stubPaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	s.body, s.signature = body, signature
	if signature != "good" {
		return apperrors.ErrInvalidWebhookSig
	}
	return nil
}

func (s *stubPaymentService) ListPayments(ctx context.Context, actor models.Actor, ref models.PaymentRef) ([]*models.Payment, error) {
	s.ref = ref
	return []*models.Payment{}, nil
}

func (s *stubPaymentService) ExpireStale(ctx context.Context) (int64, error) { return 0, nil }

type stubFileService struct {
	kind    models.OwnerKind
	ownerID int64
	slot    string
	url     string
}

func (s *stubFileService) Upload(ctx context.Context, actor models.Actor, kind models.OwnerKind, ownerID int64, slot string, file *multipart.FileHeader) (*models.StoredFile, error) {
	s.kind, s.ownerID, s.slot = kind, ownerID, slot
	return &models.StoredFile{Slot: slot, FileURL: "/uploads/x.png", FileSize: file.Size, FileType: "image/png"}, nil
}

func (s *stubFileService) Delete(ctx context.Context, actor models.Actor, kind models.OwnerKind, ownerID int64, slot, fileURL string) error {
	s.kind, s.ownerID, s.slot, s.url = kind, ownerID, slot, fileURL
	return nil
}

func (s *stubFileService) List(ctx context.Context, actor models.Actor, kind models.OwnerKind, ownerID int64) (*models.FileSet, error) {
	s.kind, s.ownerID = kind, ownerID
	return models.NewFileSet(kind, ownerID, nil), nil
}

func (s *stubFileService) RetryDeletions(ctx context.Context, limit, maxAttempts int) (int, error) {
	return 0, nil
}

type testServer struct {
	router *gin.Engine
	jwt    *auth.JWTService
}

func newTestServer() *testServer {
	return &testServer{
		router: gin.New(),
		jwt:    auth.NewJWTService(auth.JWTConfig{SecretKey: "controller-secret", TokenTTL: time.Hour, TokenIssuer: "portal"}),
	}
}

func (s *testServer) authed() gin.HandlerFunc {
	return middleware.NewAuthMiddleware(s.jwt).JWTAuth()
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, _, err := s.jwt.GenerateToken(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

var (
	staffUser   = &models.User{ID: 1, Email: "staff@college.test", RoleType: models.RoleStaff}
	studentUser = &models.User{ID: 9, Email: "student@college.test", RoleType: models.RoleStudent}
)

func TestApplicationController(t *testing.T) {
	srv := newTestServer()
	svc := &stubApplicationService{}
	ctrl := NewApplicationController(svc, zerolog.Nop())
	g := srv.router.Group("/applications", srv.authed())
	g.GET("", ctrl.ListApplications)
	g.GET("/:id", ctrl.GetApplication)
	g.POST("/:id/approve", ctrl.Approve)

	t.Run("approve maps a decided application to 409", func(t *testing.T) {
		svc.approve = func(int64) (*dto.DecisionResponse, error) { return nil, apperrors.ErrApplicationNotPending }
		w := srv.do(t, http.MethodPost, "/applications/5/approve", nil, staffUser)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("approve returns the new student", func(t *testing.T) {
		studentID := int64(77)
		svc.approve = func(id int64) (*dto.DecisionResponse, error) {
			return &dto.DecisionResponse{ApplicationID: id, Status: models.ApplicationApproved, StudentID: &studentID}, nil
		}
		w := srv.do(t, http.MethodPost, "/applications/5/approve", nil, staffUser)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"studentId":77`)
	})

	t.Run("bad id", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/applications/abc/approve", nil, staffUser)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/applications/5", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/applications/5", nil, studentUser)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list passes filters", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/applications?status=pending&course=BA&page=2&size=5", nil, staffUser)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.ApplicationStatus("pending"), svc.listed.status)
		assert.Equal(t, "BA", svc.listed.course)
		assert.Equal(t, 2, svc.listed.page)
		assert.Equal(t, 5, svc.listed.size)
	})
}

func TestPaymentController(t *testing.T) {
	srv := newTestServer()
	svc := &stubPaymentService{}
	ctrl := NewPaymentController(svc, zerolog.Nop())
	srv.router.POST("/payments/webhook", ctrl.Webhook)
	g := srv.router.Group("/payments", srv.authed())
	g.GET("", ctrl.ListPayments)
	g.POST("/verify", ctrl.VerifyPayment)

	t.Run("webhook passes the raw body and signature", func(t *testing.T) {
		raw := `{"event":"payment.captured"}`
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(raw))
		req.Header.Set(WebhookSignatureHeader, "good")
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, raw, string(svc.body))
		assert.Equal(t, "good", svc.signature)
	})

	t.Run("webhook with a bad signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{}`))
		req.Header.Set(WebhookSignatureHeader, "bad")
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("verify not captured", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/payments/verify", dto.VerifyPaymentRequest{PaymentID: "pay_1", OrderID: "order_1"}, studentUser)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("verify requires both ids", func(t *testing.T) {
		w := srv.do(t, http.MethodPost, "/payments/verify", map[string]string{"razorpayPaymentId": "pay_1"}, studentUser)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list reads the reference", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/payments?studentId=4", nil, studentUser)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, svc.ref.StudentID)
		assert.Equal(t, int64(4), *svc.ref.StudentID)
		assert.Nil(t, svc.ref.ApplicationID)

		w = srv.do(t, http.MethodGet, "/payments?studentId=x", nil, studentUser)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestFileController(t *testing.T) {
	srv := newTestServer()
	svc := &stubFileService{}
	ctrl := NewFileController(svc, zerolog.Nop())
	apps := srv.router.Group("/applications/:id/files", srv.authed())
	apps.POST("/:slot", ctrl.UploadFile(models.OwnerApplication))
	apps.DELETE("/:slot", ctrl.DeleteFile(models.OwnerApplication))
	fac := srv.router.Group("/faculty/files", srv.authed())
	fac.GET("", ctrl.ListFiles(models.OwnerFaculty))

	upload := func(t *testing.T, withFile bool) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if withFile {
			part, err := mw.CreateFormFile(FormFileField, "photo.png")
			require.NoError(t, err)
			_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
			require.NoError(t, err)
		}
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/applications/3/files/passport_photo", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		token, _, err := srv.jwt.GenerateToken(studentUser)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)
		return w
	}

	t.Run("upload", func(t *testing.T) {
		w := upload(t, true)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, models.OwnerApplication, svc.kind)
		assert.Equal(t, int64(3), svc.ownerID)
		assert.Equal(t, "passport_photo", svc.slot)
	})

	t.Run("upload without a file", func(t *testing.T) {
		w := upload(t, false)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete reads fileUrl from the body", func(t *testing.T) {
		w := srv.do(t, http.MethodDelete, "/applications/3/files/other_documents", dto.DeleteFileRequest{FileURL: "/uploads/a.pdf"}, studentUser)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "/uploads/a.pdf", svc.url)
	})

	t.Run("delete reads fileUrl from the query", func(t *testing.T) {
		w := srv.do(t, http.MethodDelete, "/applications/3/files/other_documents?fileUrl=/uploads/b.pdf", nil, studentUser)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "/uploads/b.pdf", svc.url)
	})

	t.Run("faculty defaults to the caller", func(t *testing.T) {
		w := srv.do(t, http.MethodGet, "/faculty/files", nil, staffUser)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.OwnerFaculty, svc.kind)
		assert.Equal(t, staffUser.ID, svc.ownerID)

		w = srv.do(t, http.MethodGet, "/faculty/files?facultyId=12", nil, staffUser)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(12), svc.ownerID)
	})
}
