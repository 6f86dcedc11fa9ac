package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/00Thor/CCPUR-sub000/internal/app/controllers"
	"github.com/00Thor/CCPUR-sub000/internal/app/models"
	"github.com/00Thor/CCPUR-sub000/internal/middleware"
)

// Controllers groups the handlers mounted under /api/v1
type Controllers struct {
	Auth        *controllers.AuthController
	Application *controllers.ApplicationController
	Student     *controllers.StudentController
	Payment     *controllers.PaymentController
	File        *controllers.FileController
}

// SetupRouter configures all application routes
func SetupRouter(router *gin.Engine, c Controllers, authMiddleware *middleware.AuthMiddleware) {
	v1 := router.Group("/api/v1")

	// --- Public routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", c.Auth.Register)
		auth.POST("/register/verify", c.Auth.VerifyRegistration)
		auth.POST("/login", c.Auth.Login)
		auth.POST("/forgot-password", c.Auth.ForgotPassword)
		auth.POST("/reset-password", c.Auth.ResetPassword)
	}

	// The gateway signs the body; there is no bearer token
	v1.POST("/payments/webhook", c.Payment.Webhook)

	// --- Authenticated routes ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	authenticated.GET("/auth/me", c.Auth.Me)

	applications := authenticated.Group("/applications")
	{
		applications.POST("", c.Application.SubmitPersonalDetails)
		applications.PUT("/:id/educational", c.Application.SubmitEducationalDetails)
		applications.GET("/:id", c.Application.GetApplication)

		staff := applications.Group("")
		staff.Use(authMiddleware.StaffRequired())
		{
			staff.GET("", c.Application.ListApplications)
			staff.POST("/:id/approve", c.Application.Approve)
			staff.POST("/:id/reject", c.Application.Reject)
		}

		mountFiles(applications.Group("/:id/files"), c.File, models.OwnerApplication)
	}

	students := authenticated.Group("/students")
	{
		students.GET("/me", c.Student.GetMyStudent)
		students.GET("/:id", c.Student.GetStudent)
		students.GET("/:id/academic-records", c.Student.ListAcademicRecords)

		staff := students.Group("")
		staff.Use(authMiddleware.StaffRequired())
		{
			staff.POST("/:id/promote", c.Student.Promote)
			staff.POST("/:id/graduate", c.Student.Graduate)
			staff.POST("/:id/academic-records", c.Student.AddAcademicRecord)
			staff.PUT("/:id/academic-records", c.Student.UpdateAcademicRecord)
			staff.DELETE("/:id/academic-records", c.Student.DeleteAcademicRecords)
		}

		mountFiles(students.Group("/:id/files"), c.File, models.OwnerStudent)
	}

	payments := authenticated.Group("/payments")
	{
		payments.GET("", c.Payment.ListPayments)
		payments.POST("/orders", c.Payment.CreateOrder)
		payments.POST("/verify", c.Payment.VerifyPayment)
		payments.PATCH("/status", authMiddleware.StaffRequired(), c.Payment.UpdateStatus)
	}

	faculty := authenticated.Group("/faculty/files")
	faculty.Use(authMiddleware.StaffRequired())
	mountFiles(faculty, c.File, models.OwnerFaculty)
}

func mountFiles(group *gin.RouterGroup, fc *controllers.FileController, kind models.OwnerKind) {
	group.GET("", fc.ListFiles(kind))
	group.POST("/:slot", fc.UploadFile(kind))
	group.DELETE("/:slot", fc.DeleteFile(kind))
}
