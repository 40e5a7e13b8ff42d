package controllers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"coursehub/config"
	"coursehub/models"
	"coursehub/services"
	"coursehub/storage"
	"coursehub/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CoursesController struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Tree       *services.ContentTree
	Reconciler *services.Reconciler
}

func NewCoursesController(db *gorm.DB, cfg *config.Config, tree *services.ContentTree, rec *services.Reconciler) *CoursesController {
	return &CoursesController{DB: db, Cfg: cfg, Tree: tree, Reconciler: rec}
}

func (cc *CoursesController) GetCourses(c *fiber.Ctx) error {
	var courses []models.Course
	if err := cc.DB.Preload("Modules.Lessons").Preload("Modules").Find(&courses).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}
	return utils.List(c, courses, len(courses))
}

func (cc *CoursesController) GetCourse(c *fiber.Ctx) error {
	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	course, err := cc.Tree.Load(uint(courseID))
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	var assignments []models.Assignment
	cc.DB.Where("course_id = ?", course.ID).Find(&assignments)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"course":      course,
		"assignments": assignments,
	})
}

// GetMyCourses returns the authenticated teacher's courses.
func (cc *CoursesController) GetMyCourses(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	var courses []models.Course
	err := cc.DB.Preload("Modules.Lessons").Preload("Modules").
		Where("teacher_id = ?", userID).
		Find(&courses).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}
	return utils.List(c, courses, len(courses))
}

// GetEnrolledCourses returns the courses the authenticated student is
// actually enrolled in.
func (cc *CoursesController) GetEnrolledCourses(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	var courses []models.Course
	err := cc.DB.Preload("Modules.Lessons").Preload("Modules").
		Joins("JOIN course_students ON course_students.course_id = courses.id").
		Where("course_students.user_id = ?", userID).
		Find(&courses).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}
	return utils.List(c, courses, len(courses))
}

func (cc *CoursesController) CreateCourse(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	req, uploads, closeUploads, err := parseEditRequest(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}
	defer closeUploads()

	course, err := cc.Reconciler.ApplyEdit(nil, userID, req, uploads)
	if err != nil {
		return respondEditError(c, err)
	}
	return utils.Created(c, course)
}

func (cc *CoursesController) UpdateCourse(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	role, _ := c.Locals("role").(string)

	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	existing, err := cc.Tree.Load(uint(courseID))
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	if existing.TeacherID != userID && role != models.RoleAdmin {
		return utils.Forbidden(c, "You don't have permission to edit this course")
	}

	req, uploads, closeUploads, err := parseEditRequest(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}
	defer closeUploads()

	course, err := cc.Reconciler.ApplyEdit(existing, existing.TeacherID, req, uploads)
	if err != nil {
		return respondEditError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, course)
}

func (cc *CoursesController) DeleteCourse(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	role, _ := c.Locals("role").(string)

	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	existing, err := cc.Tree.Load(uint(courseID))
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	if existing.TeacherID != userID && role != models.RoleAdmin {
		return utils.Forbidden(c, "You don't have permission to delete this course")
	}

	if err := cc.Reconciler.DeleteCourse(uint(courseID)); err != nil {
		return utils.InternalServerError(c, "Could not delete course")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{})
}

func (cc *CoursesController) Enroll(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	var student models.User
	if err := cc.DB.First(&student, userID).Error; err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	if err := cc.Tree.Enroll(uint(courseID), &student); err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not enroll")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message": "Enrolled in course successfully",
	})
}

type CreateAssignmentRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"dueDate"`
}

func (cc *CoursesController) CreateAssignment(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	role, _ := c.Locals("role").(string)

	courseID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid course ID")
	}

	existing, err := cc.Tree.Load(uint(courseID))
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return utils.NotFound(c, "Course not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	if existing.TeacherID != userID && role != models.RoleAdmin {
		return utils.Forbidden(c, "You don't have permission to edit this course")
	}

	var req CreateAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if req.Title == "" {
		return utils.ValidationFailed(c, map[string]string{
			"title": "please add a title for the assignment",
		})
	}

	assignment := models.Assignment{
		CourseID:    existing.ID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if err := cc.DB.Create(&assignment).Error; err != nil {
		return utils.InternalServerError(c, "Could not create assignment")
	}
	return utils.Created(c, assignment)
}

// parseEditRequest accepts either a plain JSON body or a multipart form with
// a "modules" JSON field and the lesson videos attached as "videos" parts
// named by original filename. The returned closer releases the opened file
// parts once the reconciler has consumed them.
func parseEditRequest(c *fiber.Ctx) (services.EditRequest, []storage.Upload, func(), error) {
	noop := func() {}
	var req services.EditRequest

	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), "multipart/form-data") {
		if err := c.BodyParser(&req); err != nil {
			return req, nil, noop, errors.New("cannot parse JSON body")
		}
		return req, nil, noop, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return req, nil, noop, errors.New("cannot parse multipart form")
	}

	req.Title = c.FormValue("title")
	req.Description = c.FormValue("description")
	req.Weeks = c.FormValue("weeks")
	req.MinimumSkill = c.FormValue("minimumSkill")
	req.ScholarshipsAvailable = c.FormValue("scholarshipsAvailable") == "true"
	if v := c.FormValue("tuition"); v != "" {
		tuition, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, nil, noop, errors.New("tuition must be a number")
		}
		req.Tuition = tuition
	}

	if v := c.FormValue("modules"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.Modules); err != nil {
			return req, nil, noop, errors.New("modules must be a JSON array")
		}
	}
	if v := c.FormValue("deleteVideos"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.DeleteVideos); err != nil {
			return req, nil, noop, errors.New("deleteVideos must be a JSON array")
		}
	}

	var uploads []storage.Upload
	var openFiles []interface{ Close() error }
	closeAll := func() {
		for _, f := range openFiles {
			f.Close()
		}
	}

	for _, fh := range form.File["videos"] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return req, nil, noop, errors.New("cannot open uploaded file " + fh.Filename)
		}
		openFiles = append(openFiles, f)
		uploads = append(uploads, storage.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Reader:      f,
		})
	}
	return req, uploads, closeAll, nil
}

func respondEditError(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	var uperr *services.UploadFailedError
	switch {
	case errors.As(err, &verr):
		return utils.ValidationFailed(c, verr.Fields)
	case errors.Is(err, storage.ErrTooLarge):
		return utils.Error(c, fiber.StatusRequestEntityTooLarge, "Uploaded video is too large")
	case errors.As(err, &uperr):
		return utils.InternalServerError(c, "Could not store uploaded video")
	case errors.Is(err, services.ErrCourseNotFound):
		return utils.NotFound(c, "Course not found")
	default:
		return utils.InternalServerError(c, "Could not save course")
	}
}
