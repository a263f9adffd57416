package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-sis-api/internal/handler"
	"github.com/noah-isme/campus-sis-api/internal/middleware"
	"github.com/noah-isme/campus-sis-api/internal/models"
	"github.com/noah-isme/campus-sis-api/internal/service"
	"github.com/noah-isme/campus-sis-api/pkg/config"
)

// Deps bundles everything the router needs to register routes.
type Deps struct {
	Auth          *service.AuthService
	Metrics       *service.MetricsService
	AuthHandler   *handler.AuthHandler
	Users         *handler.UserHandler
	Courses       *handler.CourseHandler
	Enrollments   *handler.EnrollmentHandler
	Grades        *handler.GradeHandler
	Attendance    *handler.AttendanceHandler
	Notifications *handler.NotificationHandler
	Ready         func() error
}

// Register wires all API routes onto the engine.
func Register(r *gin.Engine, cfg *config.Config, deps Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := r.Group(cfg.APIPrefix)
	authRequired := middleware.JWT(deps.Auth)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.AuthHandler.Login)
		auth.POST("/register", authRequired, middleware.RequireRoles(models.RoleAdmin), deps.AuthHandler.Register)
	}

	users := api.Group("/users", authRequired)
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Users.List)
		users.GET("/profile", deps.Users.Profile)
		users.PUT("/profile", deps.Users.UpdateProfile)
	}

	courses := api.Group("/courses", authRequired)
	{
		courses.GET("", deps.Courses.List)
		courses.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Courses.Create)
		courses.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Courses.Update)
		courses.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.Courses.Delete)
	}

	enrollments := api.Group("/enrollments", authRequired)
	{
		enrollments.GET("/my-enrollments", deps.Enrollments.MyEnrollments)
		enrollments.GET("/course/:courseId", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Enrollments.CourseRoster)
		enrollments.POST("", middleware.RequireRoles(models.RoleStudent), deps.Enrollments.Enroll)
		enrollments.DELETE("/:courseId", middleware.RequireRoles(models.RoleStudent), deps.Enrollments.Drop)
	}

	grades := api.Group("/grades", authRequired)
	{
		grades.GET("/my-grades", middleware.RequireRoles(models.RoleStudent), deps.Grades.MyGrades)
		grades.GET("/course/:courseId", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Grades.CourseGrades)
		grades.GET("/course/:courseId/export", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Grades.Export)
		grades.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Grades.Set)
		grades.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.Grades.Delete)
	}

	attendance := api.Group("/attendance", authRequired)
	{
		attendance.GET("/my-attendance", middleware.RequireRoles(models.RoleStudent), deps.Attendance.MyAttendance)
		attendance.GET("/course/:courseId", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Attendance.CourseAttendance)
		attendance.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Attendance.Record)
		attendance.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Attendance.Update)
	}

	notifications := api.Group("/notifications", authRequired)
	{
		notifications.GET("", deps.Notifications.List)
		notifications.GET("/unread-count", deps.Notifications.UnreadCount)
		notifications.PUT("/read-all", deps.Notifications.MarkAllRead)
		notifications.PUT("/:id/read", deps.Notifications.MarkRead)
		notifications.DELETE("/:id", deps.Notifications.Delete)
	}
}
