package routes

import (
	"log"

	"coursehub/config"
	"coursehub/controllers"
	"coursehub/middleware"
	"coursehub/models"
	"coursehub/services"
	"coursehub/storage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, store *storage.BlobStore, logger *log.Logger) {
	tree := services.NewContentTree(db)
	reconciler := services.NewReconciler(tree, store, logger)
	gateway := storage.NewStreamGateway(store)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/v1/auth/register", authController.Register)
	app.Post("/api/v1/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	teacherOrAdmin := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)
	studentOnly := middleware.RequireRoles(models.RoleStudent)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	// User routes
	userController := controllers.NewUserController(db, cfg)
	app.Get("/api/v1/users/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/v1/users/profile", authMiddleware, userController.UpdateProfile)
	app.Get("/api/v1/users", authMiddleware, adminOnly, userController.ListUsers)

	// Course routes
	coursesController := controllers.NewCoursesController(db, cfg, tree, reconciler)
	courses := app.Group("/api/v1/courses")
	courses.Get("/", coursesController.GetCourses)
	courses.Get("/mine", authMiddleware, middleware.RequireRoles(models.RoleTeacher), coursesController.GetMyCourses)
	courses.Get("/enrolled", authMiddleware, studentOnly, coursesController.GetEnrolledCourses)
	courses.Get("/:id", coursesController.GetCourse)
	courses.Post("/", authMiddleware, teacherOrAdmin, coursesController.CreateCourse)
	courses.Put("/:id", authMiddleware, teacherOrAdmin, coursesController.UpdateCourse)
	courses.Delete("/:id", authMiddleware, teacherOrAdmin, coursesController.DeleteCourse)
	courses.Post("/:id/enroll", authMiddleware, studentOnly, coursesController.Enroll)
	courses.Post("/:id/assignments", authMiddleware, teacherOrAdmin, coursesController.CreateAssignment)

	// Video routes
	videosController := controllers.NewVideosController(store, gateway)
	app.Get("/api/v1/videos/:id", videosController.StreamVideo)
	app.Get("/api/v1/videos/:id/info", videosController.GetVideoInfo)

	// Test routes (quizzes attached to course modules)
	testsController := controllers.NewTestsController(db, cfg)
	app.Post("/api/v1/modules/:moduleId/tests", authMiddleware, teacherOrAdmin, testsController.CreateTest)
	app.Get("/api/v1/modules/:moduleId/tests", authMiddleware, testsController.GetTestsForModule)
	tests := app.Group("/api/v1/tests", authMiddleware)
	tests.Get("/:id", testsController.GetTest)
	tests.Put("/:id", teacherOrAdmin, testsController.UpdateTest)
	tests.Delete("/:id", teacherOrAdmin, testsController.DeleteTest)
}
