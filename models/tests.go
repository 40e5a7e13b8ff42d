package models

import (
	"time"

	"gorm.io/gorm"
)

type Test struct {
	gorm.Model
	ModuleID  uint       `gorm:"index;not null" json:"moduleId"`
	Questions []Question `json:"questions"`
}

type Question struct {
	gorm.Model
	TestID       uint     `gorm:"index" json:"-"`
	QuestionText string   `gorm:"not null" json:"questionText"`
	Answers      []Answer `json:"answers"`
}

type Answer struct {
	gorm.Model
	QuestionID uint   `gorm:"index" json:"-"`
	Text       string `gorm:"not null" json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
}

type Assignment struct {
	gorm.Model
	CourseID    uint      `gorm:"index;not null" json:"courseId"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"dueDate"`
}
