package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"coursehub/models"
)

// ContentTree persists the Course -> Module -> Lesson document. It knows
// nothing about how videos are stored; lesson video fields are opaque ids.
type ContentTree struct {
	db *gorm.DB
}

func NewContentTree(db *gorm.DB) *ContentTree {
	return &ContentTree{db: db}
}

func (t *ContentTree) Load(courseID uint) (*models.Course, error) {
	var course models.Course
	err := t.db.
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Students").
		First(&course, courseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return &course, nil
}

// Save validates the course and writes it in one transaction. For an
// existing course a non-nil Modules slice replaces the whole tree; a nil
// slice means "fields only, leave the tree alone".
func (t *ContentTree) Save(course *models.Course) error {
	if verr := ValidateCourse(course); verr != nil {
		return verr
	}

	return t.db.Transaction(func(tx *gorm.DB) error {
		if course.ID == 0 {
			stampPositions(course.Modules)
			return tx.Omit("Students").Create(course).Error
		}

		if err := tx.Omit("Modules", "Students").Save(course).Error; err != nil {
			return err
		}
		if course.Modules == nil {
			return nil
		}

		// Whole-tree replace: drop every module and lesson, then recreate
		// from the incoming descriptors.
		sub := tx.Model(&models.Module{}).Select("id").Where("course_id = ?", course.ID)
		if err := tx.Where("module_id IN (?)", sub).Delete(&models.Lesson{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", course.ID).Delete(&models.Module{}).Error; err != nil {
			return err
		}

		stampPositions(course.Modules)
		for i := range course.Modules {
			course.Modules[i].ID = 0
			course.Modules[i].CourseID = course.ID
			for j := range course.Modules[i].Lessons {
				course.Modules[i].Lessons[j].ID = 0
				course.Modules[i].Lessons[j].ModuleID = 0
			}
			if err := tx.Create(&course.Modules[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the course, its modules and lessons, the tests bound to
// those modules and the assignments bound to the course. It returns the
// video ids the deleted lessons referenced so the caller can clean up blob
// storage afterwards.
func (t *ContentTree) Delete(courseID uint) ([]string, error) {
	course, err := t.Load(courseID)
	if err != nil {
		return nil, err
	}

	videoIDs := make([]string, 0)
	moduleIDs := make([]uint, 0, len(course.Modules))
	for _, mod := range course.Modules {
		moduleIDs = append(moduleIDs, mod.ID)
		for _, lesson := range mod.Lessons {
			if lesson.VideoID != "" {
				videoIDs = append(videoIDs, lesson.VideoID)
			}
		}
	}

	err = t.db.Transaction(func(tx *gorm.DB) error {
		if len(moduleIDs) > 0 {
			testSub := tx.Model(&models.Test{}).Select("id").Where("module_id IN ?", moduleIDs)
			questionSub := tx.Model(&models.Question{}).Select("id").Where("test_id IN (?)", testSub)
			if err := tx.Where("question_id IN (?)", questionSub).Delete(&models.Answer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("test_id IN (?)", testSub).Delete(&models.Question{}).Error; err != nil {
				return err
			}
			if err := tx.Where("module_id IN ?", moduleIDs).Delete(&models.Test{}).Error; err != nil {
				return err
			}
			if err := tx.Where("module_id IN ?", moduleIDs).Delete(&models.Lesson{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("course_id = ?", courseID).Delete(&models.Module{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", courseID).Delete(&models.Assignment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(course).Association("Students").Clear(); err != nil {
			return fmt.Errorf("clearing enrollments: %w", err)
		}
		return tx.Delete(course).Error
	})
	if err != nil {
		return nil, err
	}
	return videoIDs, nil
}

// Enroll adds the student to the course roster. Enrolling twice is a no-op.
func (t *ContentTree) Enroll(courseID uint, student *models.User) error {
	course, err := t.Load(courseID)
	if err != nil {
		return err
	}
	for _, s := range course.Students {
		if s.ID == student.ID {
			return nil
		}
	}
	return t.db.Model(course).Association("Students").Append(student)
}

// IsEnrolled reports roster membership.
func (t *ContentTree) IsEnrolled(courseID, userID uint) (bool, error) {
	var count int64
	err := t.db.Table("course_students").
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Count(&count).Error
	return count > 0, err
}

// ReferencedVideoIDs reports every video id a live lesson points at. Used by
// the storage reaper to tell orphans apart.
func (t *ContentTree) ReferencedVideoIDs() (map[string]bool, error) {
	var ids []string
	err := t.db.Model(&models.Lesson{}).
		Where("video_id <> ''").
		Pluck("video_id", &ids).Error
	if err != nil {
		return nil, err
	}
	refs := make(map[string]bool, len(ids))
	for _, id := range ids {
		refs[id] = true
	}
	return refs, nil
}

func stampPositions(mods []models.Module) {
	for i := range mods {
		mods[i].Position = i
		for j := range mods[i].Lessons {
			mods[i].Lessons[j].Position = j
		}
	}
}
