package controllers

import (
	"errors"
	"strconv"

	"coursehub/config"
	"coursehub/models"
	"coursehub/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TestsController struct {
	DB  *gorm.DB
	Cfg *config.Config
}

func NewTestsController(db *gorm.DB, cfg *config.Config) *TestsController {
	return &TestsController{DB: db, Cfg: cfg}
}

type QuestionInput struct {
	QuestionText string `json:"questionText"`
	Answers      []struct {
		Text      string `json:"text"`
		IsCorrect bool   `json:"isCorrect"`
	} `json:"answers"`
}

type TestInput struct {
	Questions []QuestionInput `json:"questions"`
}

// moduleCourse resolves a module to its owning course for permission checks.
func (tc *TestsController) moduleCourse(moduleID uint) (*models.Course, *models.Module, error) {
	var module models.Module
	if err := tc.DB.First(&module, moduleID).Error; err != nil {
		return nil, nil, err
	}
	var course models.Course
	if err := tc.DB.First(&course, module.CourseID).Error; err != nil {
		return nil, nil, err
	}
	return &course, &module, nil
}

func (tc *TestsController) CreateTest(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	role, _ := c.Locals("role").(string)

	moduleID, err := strconv.Atoi(c.Params("moduleId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid module ID")
	}

	course, module, err := tc.moduleCourse(uint(moduleID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Module not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	if course.TeacherID != userID && role != models.RoleAdmin {
		return utils.Forbidden(c, "You don't have permission to add tests to this course")
	}

	var input TestInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if verr := validateQuestions(input.Questions); verr != nil {
		return utils.ValidationFailed(c, verr)
	}

	test := models.Test{
		ModuleID:  module.ID,
		Questions: buildQuestions(input.Questions),
	}
	if err := tc.DB.Create(&test).Error; err != nil {
		return utils.InternalServerError(c, "Could not create test")
	}
	return utils.Created(c, test)
}

func (tc *TestsController) GetTestsForModule(c *fiber.Ctx) error {
	moduleID, err := strconv.Atoi(c.Params("moduleId"))
	if err != nil {
		return utils.BadRequest(c, "Invalid module ID")
	}

	var tests []models.Test
	err = tc.DB.Preload("Questions.Answers").Preload("Questions").
		Where("module_id = ?", moduleID).
		Find(&tests).Error
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}
	return utils.List(c, tests, len(tests))
}

func (tc *TestsController) GetTest(c *fiber.Ctx) error {
	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	var test models.Test
	err = tc.DB.Preload("Questions.Answers").Preload("Questions").First(&test, testID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Test not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}
	return utils.Success(c, fiber.StatusOK, test)
}

// UpdateTest replaces the question list wholesale, same as course edits
// replace the module tree.
func (tc *TestsController) UpdateTest(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	role, _ := c.Locals("role").(string)

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	var test models.Test
	if err := tc.DB.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Test not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	course, _, err := tc.moduleCourse(test.ModuleID)
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}
	if course.TeacherID != userID && role != models.RoleAdmin {
		return utils.Forbidden(c, "You don't have permission to edit tests in this course")
	}

	var input TestInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if verr := validateQuestions(input.Questions); verr != nil {
		return utils.ValidationFailed(c, verr)
	}

	err = tc.DB.Transaction(func(tx *gorm.DB) error {
		questionSub := tx.Model(&models.Question{}).Select("id").Where("test_id = ?", test.ID)
		if err := tx.Where("question_id IN (?)", questionSub).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", test.ID).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		test.Questions = buildQuestions(input.Questions)
		for i := range test.Questions {
			test.Questions[i].TestID = test.ID
			if err := tx.Create(&test.Questions[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return utils.InternalServerError(c, "Could not update test")
	}
	return utils.Success(c, fiber.StatusOK, test)
}

func (tc *TestsController) DeleteTest(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)
	role, _ := c.Locals("role").(string)

	testID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid test ID")
	}

	var test models.Test
	if err := tc.DB.First(&test, testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound(c, "Test not found")
		}
		return utils.InternalServerError(c, "Could not query database")
	}

	course, _, err := tc.moduleCourse(test.ModuleID)
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}
	if course.TeacherID != userID && role != models.RoleAdmin {
		return utils.Forbidden(c, "You don't have permission to delete tests in this course")
	}

	err = tc.DB.Transaction(func(tx *gorm.DB) error {
		questionSub := tx.Model(&models.Question{}).Select("id").Where("test_id = ?", test.ID)
		if err := tx.Where("question_id IN (?)", questionSub).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", test.ID).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&test).Error
	})
	if err != nil {
		return utils.InternalServerError(c, "Could not delete test")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{})
}

func validateQuestions(questions []QuestionInput) map[string]string {
	fields := map[string]string{}
	if len(questions) == 0 {
		fields["questions"] = "a test needs at least one question"
	}
	for i, q := range questions {
		if q.QuestionText == "" {
			fields["questions["+strconv.Itoa(i)+"].questionText"] = "please add question text"
		}
		if len(q.Answers) == 0 {
			fields["questions["+strconv.Itoa(i)+"].answers"] = "a question needs at least one answer"
		}
		for j, a := range q.Answers {
			if a.Text == "" {
				fields["questions["+strconv.Itoa(i)+"].answers["+strconv.Itoa(j)+"].text"] = "please add answer text"
			}
		}
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

func buildQuestions(inputs []QuestionInput) []models.Question {
	questions := make([]models.Question, 0, len(inputs))
	for _, q := range inputs {
		answers := make([]models.Answer, 0, len(q.Answers))
		for _, a := range q.Answers {
			answers = append(answers, models.Answer{Text: a.Text, IsCorrect: a.IsCorrect})
		}
		questions = append(questions, models.Question{QuestionText: q.QuestionText, Answers: answers})
	}
	return questions
}
