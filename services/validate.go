package services

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"coursehub/models"
)

var validate = validator.New()

// scalarCourseFields mirrors the course schema for the flat fields so the
// validator can check them in one pass.
type scalarCourseFields struct {
	Title        string  `validate:"required"`
	Description  string  `validate:"required"`
	Weeks        string  `validate:"required"`
	Tuition      float64 `validate:"gte=0"`
	MinimumSkill string  `validate:"required,oneof=beginner intermediate advanced"`
}

var scalarFieldMessages = map[string]string{
	"Title":        "please add a course title",
	"Description":  "please add a description",
	"Weeks":        "please add number of weeks",
	"Tuition":      "tuition must be zero or positive",
	"MinimumSkill": "minimum skill must be one of beginner, intermediate, advanced",
}

var scalarFieldNames = map[string]string{
	"Title":        "title",
	"Description":  "description",
	"Weeks":        "weeks",
	"Tuition":      "tuition",
	"MinimumSkill": "minimumSkill",
}

// ValidateCourse checks the whole document and reports every violation at
// once. Modules are optional; a module that is present must carry a title
// and at least one lesson, and every lesson needs a title and text. A lesson
// video may be absent.
func ValidateCourse(course *models.Course) error {
	fields := map[string]string{}

	scalars := scalarCourseFields{
		Title:        course.Title,
		Description:  course.Description,
		Weeks:        course.Weeks,
		Tuition:      course.Tuition,
		MinimumSkill: course.MinimumSkill,
	}
	if err := validate.Struct(scalars); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[scalarFieldNames[fe.Field()]] = scalarFieldMessages[fe.Field()]
			}
		}
	}

	if course.TeacherID == 0 {
		fields["teacher"] = "course must belong to a teacher"
	}

	for i, mod := range course.Modules {
		if mod.Title == "" {
			fields[fmt.Sprintf("modules[%d].title", i)] = "please add a module title"
		}
		if len(mod.Lessons) == 0 {
			fields[fmt.Sprintf("modules[%d].lessons", i)] = "a module needs at least one lesson"
		}
		for j, lesson := range mod.Lessons {
			if lesson.Title == "" {
				fields[fmt.Sprintf("modules[%d].lessons[%d].title", i, j)] = "please add a lesson title"
			}
			if lesson.Text == "" {
				fields[fmt.Sprintf("modules[%d].lessons[%d].text", i, j)] = "please add lesson text"
			}
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
