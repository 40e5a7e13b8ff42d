package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SkillBeginner     = "beginner"
	SkillIntermediate = "intermediate"
	SkillAdvanced     = "advanced"
)

type Course struct {
	ID                    uint           `gorm:"primarykey" json:"id"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"-"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
	Title                 string         `gorm:"not null" json:"title"`
	Description           string         `json:"description"`
	Weeks                 string         `json:"weeks"`
	Tuition               float64        `json:"tuition"`
	MinimumSkill          string         `json:"minimumSkill"` // beginner, intermediate, advanced
	ScholarshipsAvailable bool           `json:"scholarshipsAvailable"`
	TeacherID             uint           `gorm:"index" json:"teacher"`
	Modules               []Module       `json:"modules"`
	Students              []User         `gorm:"many2many:course_students" json:"students,omitempty"`
}

// Modules and lessons are replaced wholesale on every course edit, so they
// carry no soft-delete column: stale rows are removed for real.
type Module struct {
	ID       uint     `gorm:"primarykey" json:"id"`
	CourseID uint     `gorm:"index" json:"-"`
	Position int      `json:"-"`
	Title    string   `gorm:"not null" json:"title"`
	Lessons  []Lesson `json:"lessons"`
}

type Lesson struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	ModuleID uint   `gorm:"index" json:"-"`
	Position int    `json:"-"`
	Title    string `gorm:"not null" json:"title"`
	Text     string `gorm:"not null" json:"text"`
	VideoID  string `gorm:"size:36" json:"video,omitempty"` // blob id, empty = no video
}
