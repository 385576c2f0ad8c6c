package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dental-clinic-server/internal/config"
	"dental-clinic-server/internal/handlers"
	"dental-clinic-server/internal/metrics"
	"dental-clinic-server/internal/middleware"
	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
	"dental-clinic-server/internal/services"
)

// Dependencies are the shared components the routes are built from.
// Metrics may be nil.
type Dependencies struct {
	Store   repository.Store
	Config  *config.Config
	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	store, cfg := deps.Store, deps.Config

	consultations := services.NewConsultationService(store, deps.Log, deps.Metrics)
	orders := services.NewProstheticOrderService(store, deps.Log, deps.Metrics)

	authHandler := handlers.NewAuthHandler(store, cfg)
	userHandler := handlers.NewUserHandler(store)
	patientHandler := handlers.NewPatientHandler(store)
	laboratoryHandler := handlers.NewLaboratoryHandler(store)
	appointmentHandler := handlers.NewAppointmentHandler(store)
	medicalRecordHandler := handlers.NewMedicalRecordHandler(store)
	consultationHandler := handlers.NewConsultationHandler(consultations)
	orderHandler := handlers.NewProstheticOrderHandler(orders)
	notificationHandler := handlers.NewNotificationHandler(store)

	clinicStaff := middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleDentist, models.RoleReceptionist)
	clinicians := middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleDentist)
	adminOnly := middleware.RoleAuthMiddleware(models.RoleAdmin)

	// Public routes
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.RegisterClinic)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		userRoutes := private.Group("/users")
		{
			userRoutes.GET("/dentists", clinicStaff, userHandler.GetDentists)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(adminOnly)
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		patientRoutes := private.Group("/patients")
		patientRoutes.Use(clinicStaff)
		{
			patientRoutes.POST("", patientHandler.CreatePatient)
			patientRoutes.GET("", patientHandler.GetPatients)
			patientRoutes.GET("/:id", patientHandler.GetPatientByID)
			patientRoutes.PUT("/:id", patientHandler.UpdatePatient)
			patientRoutes.DELETE("/:id", adminOnly, patientHandler.DeletePatient)
			patientRoutes.GET("/:id/medical-records", clinicians, medicalRecordHandler.GetPatientMedicalRecords)
		}

		laboratoryRoutes := private.Group("/laboratories")
		laboratoryRoutes.Use(clinicStaff)
		{
			laboratoryRoutes.GET("", laboratoryHandler.GetLaboratories)
			laboratoryRoutes.GET("/:id", laboratoryHandler.GetLaboratoryByID)
			laboratoryRoutes.POST("", adminOnly, laboratoryHandler.CreateLaboratory)
			laboratoryRoutes.PUT("/:id", adminOnly, laboratoryHandler.UpdateLaboratory)
			laboratoryRoutes.DELETE("/:id", adminOnly, laboratoryHandler.DeleteLaboratory)
		}

		appointmentRoutes := private.Group("/appointments")
		appointmentRoutes.Use(clinicStaff)
		{
			appointmentRoutes.POST("", appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.GET("/:id/consultation", consultationHandler.GetConsultationByAppointment)
			appointmentRoutes.PATCH("/:id/status", appointmentHandler.UpdateAppointmentStatus)
			appointmentRoutes.PATCH("/:id/reschedule", appointmentHandler.RescheduleAppointment)
		}

		consultationRoutes := private.Group("/consultations")
		consultationRoutes.Use(clinicians)
		{
			consultationRoutes.POST("", consultationHandler.StartConsultation)
			consultationRoutes.GET("", consultationHandler.GetConsultations)
			consultationRoutes.GET("/:id", consultationHandler.GetConsultation)
			consultationRoutes.PATCH("/:id", consultationHandler.UpdateConsultation)
			consultationRoutes.GET("/:id/medical-record", medicalRecordHandler.GetConsultationMedicalRecord)
		}

		medicalRecordRoutes := private.Group("/medical-records")
		medicalRecordRoutes.Use(clinicians)
		{
			medicalRecordRoutes.GET("/:id", medicalRecordHandler.GetMedicalRecordByID)
		}

		// Lab accounts reach only orders and notifications; scoping to their lab happens in the service.
		orderRoutes := private.Group("/prosthetic-orders")
		{
			orderRoutes.POST("", clinicians, orderHandler.CreateOrder)
			orderRoutes.GET("", orderHandler.GetOrders)
			orderRoutes.GET("/:id", orderHandler.GetOrder)
			orderRoutes.PUT("/:id", clinicians, orderHandler.UpdateOrder)
			orderRoutes.PUT("/:id/status", orderHandler.UpdateOrderStatus)
			orderRoutes.POST("/:id/adjustment", orderHandler.RequestAdjustment)
			orderRoutes.GET("/:id/history", orderHandler.GetHistory)
			orderRoutes.GET("/:id/comments", orderHandler.GetComments)
			orderRoutes.POST("/:id/comments", orderHandler.AddComment)
		}

		notificationRoutes := private.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.GetNotifications)
			notificationRoutes.PATCH("/read-all", notificationHandler.MarkAllNotificationsRead)
			notificationRoutes.PATCH("/:id/read", notificationHandler.MarkNotificationRead)
		}
	}

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
}
