package services

import (
	"errors"
	"log"

	"coursehub/models"
	"coursehub/storage"
)

// EditRequest is a parsed course create/update payload. The HTTP layer fills
// it from JSON or from the multipart form; the reconciler never sees the
// wire format.
//
// A lesson's Video field is one of:
//   - a filename matching one of the files uploaded with this request,
//   - an id of a video already attached to the existing course ("keep"),
//   - empty, meaning no video.
//
// A nil Modules slice on an update means "don't touch the tree".
type EditRequest struct {
	Title                 string        `json:"title"`
	Description           string        `json:"description"`
	Weeks                 string        `json:"weeks"`
	Tuition               float64       `json:"tuition"`
	MinimumSkill          string        `json:"minimumSkill"`
	ScholarshipsAvailable bool          `json:"scholarshipsAvailable"`
	Modules               []ModuleInput `json:"modules"`
	DeleteVideos          []string      `json:"deleteVideos"`
}

type ModuleInput struct {
	Title   string        `json:"title"`
	Lessons []LessonInput `json:"lessons"`
}

type LessonInput struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Video string `json:"video"`
}

// Reconciler turns an edit payload plus the current course state into a
// consistent new tree and the matching storage mutations. It is the only
// writer of both the course tree and the video store during an edit.
type Reconciler struct {
	tree   *ContentTree
	store  *storage.BlobStore
	logger *log.Logger
}

func NewReconciler(tree *ContentTree, store *storage.BlobStore, logger *log.Logger) *Reconciler {
	return &Reconciler{tree: tree, store: store, logger: logger}
}

// ApplyEdit runs a full create or update:
//
//  1. store every uploaded file, building filename -> id,
//  2. resolve each lesson's video reference against that mapping, the
//     explicit delete list and the previously attached ids,
//  3. validate and persist the new tree,
//  4. best-effort delete whatever the edit orphaned.
//
// The tree write strictly precedes cleanup, so a video still referenced by
// the persisted tree is never deleted, not even transiently. Cleanup
// failures are logged and swallowed: once the tree write lands the edit has
// succeeded.
// teacherID is used only when creating; an existing course keeps its owner.
func (r *Reconciler) ApplyEdit(existing *models.Course, teacherID uint, req EditRequest, uploads []storage.Upload) (*models.Course, error) {
	uploaded := make(map[string]string, len(uploads))
	for _, up := range uploads {
		id, err := r.store.Put(up.Filename, up.ContentType, up.Reader)
		if err != nil {
			// Files stored earlier in this batch are now unreferenced;
			// the reaper will collect them.
			return nil, &UploadFailedError{Filename: up.Filename, Err: err}
		}
		// Same filename twice in one batch: the later upload wins.
		uploaded[up.Filename] = id
	}

	explicitDeletes := make(map[string]bool, len(req.DeleteVideos))
	for _, id := range req.DeleteVideos {
		explicitDeletes[id] = true
	}
	previousRefs := referencedVideos(existing)

	course := buildCourse(existing, teacherID, req)
	if req.Modules != nil {
		course.Modules = resolveModules(req.Modules, uploaded, explicitDeletes, previousRefs)
	}

	if err := r.tree.Save(course); err != nil {
		return nil, err
	}

	// The fields-only branch keeps the stored tree, so reload to report and
	// diff against what is actually persisted.
	saved, err := r.tree.Load(course.ID)
	if err != nil {
		return nil, err
	}

	currentRefs := referencedVideos(saved)
	orphans := make(map[string]bool)
	for id := range previousRefs {
		if !currentRefs[id] {
			orphans[id] = true
		}
	}
	for id := range explicitDeletes {
		if !currentRefs[id] {
			orphans[id] = true
		}
	}
	for id := range orphans {
		if err := r.store.Delete(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.logger.Printf("cleanup: could not delete video %s: %v", id, err)
		}
	}

	return saved, nil
}

// DeleteCourse removes the course tree and then clears its videos from
// storage. Blob cleanup is best effort; the course is gone either way.
func (r *Reconciler) DeleteCourse(courseID uint) error {
	videoIDs, err := r.tree.Delete(courseID)
	if err != nil {
		return err
	}
	for _, id := range videoIDs {
		if err := r.store.Delete(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.logger.Printf("cleanup: could not delete video %s of course %d: %v", id, courseID, err)
		}
	}
	return nil
}

// resolveModules rewrites every lesson's video field into a storage id or
// empty. Resolution order per lesson: fresh upload by filename, explicit
// delete, previously attached id, otherwise no video.
func resolveModules(inputs []ModuleInput, uploaded map[string]string, explicitDeletes, previousRefs map[string]bool) []models.Module {
	mods := make([]models.Module, 0, len(inputs))
	for _, in := range inputs {
		lessons := make([]models.Lesson, 0, len(in.Lessons))
		for _, lin := range in.Lessons {
			video := ""
			switch {
			case lin.Video == "":
				// no video
			case uploaded[lin.Video] != "":
				video = uploaded[lin.Video]
			case explicitDeletes[lin.Video]:
				// caller removed it in this edit
			case previousRefs[lin.Video]:
				video = lin.Video
			}
			lessons = append(lessons, models.Lesson{
				Title:   lin.Title,
				Text:    lin.Text,
				VideoID: video,
			})
		}
		mods = append(mods, models.Module{Title: in.Title, Lessons: lessons})
	}
	return mods
}

func buildCourse(existing *models.Course, teacherID uint, req EditRequest) *models.Course {
	course := &models.Course{
		Title:                 req.Title,
		Description:           req.Description,
		Weeks:                 req.Weeks,
		Tuition:               req.Tuition,
		MinimumSkill:          req.MinimumSkill,
		ScholarshipsAvailable: req.ScholarshipsAvailable,
		TeacherID:             teacherID,
	}
	if existing != nil {
		course.ID = existing.ID
		course.CreatedAt = existing.CreatedAt
		course.TeacherID = existing.TeacherID
	}
	return course
}

func referencedVideos(course *models.Course) map[string]bool {
	refs := make(map[string]bool)
	if course == nil {
		return refs
	}
	for _, mod := range course.Modules {
		for _, lesson := range mod.Lessons {
			if lesson.VideoID != "" {
				refs[lesson.VideoID] = true
			}
		}
	}
	return refs
}
