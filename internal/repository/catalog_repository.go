package repository

import (
	"errors"

	"gorm.io/gorm"

	"videopath-backend/internal/models"
)

type VideoRepository interface {
	Create(video *models.Video) error
	Update(video *models.Video) error
	GetByID(id uint) (*models.Video, error)
	List() ([]models.Video, error)
	ListPublished() ([]models.Video, error)
	Exists(id uint) (bool, error)
}

type QuizRepository interface {
	GetByID(id uint) (*models.Quiz, error)
	GetByVideoID(videoID uint) (*models.Quiz, error)
	List() ([]models.Quiz, error)
	Save(quiz *models.Quiz, questions []models.QuizQuestion) error
	ListStructure(quizIDs []uint) (map[uint][]models.QuizQuestion, error)
}

type videoRepository struct {
	db *gorm.DB
}

type quizRepository struct {
	db *gorm.DB
}

func NewVideoRepository(db *gorm.DB) VideoRepository {
	return &videoRepository{db: db}
}

func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *videoRepository) Create(video *models.Video) error {
	if r == nil || r.db == nil {
		return errors.New("video repository is not initialised")
	}
	if video == nil {
		return errors.New("video is required")
	}
	return r.db.Create(video).Error
}

func (r *videoRepository) Update(video *models.Video) error {
	if r == nil || r.db == nil {
		return errors.New("video repository is not initialised")
	}
	if video == nil {
		return errors.New("video is required")
	}
	return r.db.Save(video).Error
}

func (r *videoRepository) GetByID(id uint) (*models.Video, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("video repository is not initialised")
	}
	var video models.Video
	if err := r.db.First(&video, id).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *videoRepository) List() ([]models.Video, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("video repository is not initialised")
	}
	var videos []models.Video
	if err := r.db.Order("sort_order ASC, id ASC").Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *videoRepository) ListPublished() ([]models.Video, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("video repository is not initialised")
	}
	var videos []models.Video
	if err := r.db.Where("is_published = ?", true).Order("sort_order ASC, id ASC").Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *videoRepository) Exists(id uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("video repository is not initialised")
	}
	var count int64
	if err := r.db.Model(&models.Video{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByID loads a quiz together with its questions and options.
func (r *quizRepository) GetByID(id uint) (*models.Quiz, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("quiz repository is not initialised")
	}
	var quiz models.Quiz
	if err := r.db.First(&quiz, id).Error; err != nil {
		return nil, err
	}
	if err := r.attachStructure(&quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *quizRepository) GetByVideoID(videoID uint) (*models.Quiz, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("quiz repository is not initialised")
	}
	var quiz models.Quiz
	if err := r.db.Where("video_id = ?", videoID).First(&quiz).Error; err != nil {
		return nil, err
	}
	if err := r.attachStructure(&quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// List returns every quiz with its structure, for audits and admin listings.
func (r *quizRepository) List() ([]models.Quiz, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("quiz repository is not initialised")
	}
	var quizzes []models.Quiz
	if err := r.db.Order("id ASC").Find(&quizzes).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(quizzes))
	for _, quiz := range quizzes {
		ids = append(ids, quiz.ID)
	}
	structure, err := r.ListStructure(ids)
	if err != nil {
		return nil, err
	}
	for idx := range quizzes {
		quizzes[idx].Questions = structure[quizzes[idx].ID]
	}
	return quizzes, nil
}

// Save creates or updates quiz, replaces its questions and options and points
// the owning video at it, all in one transaction.
func (r *quizRepository) Save(quiz *models.Quiz, questions []models.QuizQuestion) error {
	if r == nil || r.db == nil {
		return errors.New("quiz repository is not initialised")
	}
	if quiz == nil {
		return errors.New("quiz is required")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if quiz.ID == 0 {
			if err := tx.Create(quiz).Error; err != nil {
				return err
			}
		} else if err := tx.Save(quiz).Error; err != nil {
			return err
		}

		subQuery := tx.Model(&models.QuizQuestion{}).Select("id").Where("quiz_id = ?", quiz.ID)
		if err := tx.Where("question_id IN (?)", subQuery).Delete(&models.QuizOption{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", quiz.ID).Delete(&models.QuizQuestion{}).Error; err != nil {
			return err
		}

		saved := make([]models.QuizQuestion, 0, len(questions))
		for idx := range questions {
			question := questions[idx]
			question.ID = 0
			question.QuizID = quiz.ID
			question.Position = idx
			options := question.Options
			question.Options = nil
			if err := tx.Create(&question).Error; err != nil {
				return err
			}
			for optIdx := range options {
				option := options[optIdx]
				option.ID = 0
				option.QuestionID = question.ID
				option.Position = optIdx
				if err := tx.Create(&option).Error; err != nil {
					return err
				}
				question.Options = append(question.Options, option)
			}
			saved = append(saved, question)
		}

		if err := tx.Model(&models.Video{}).Where("id = ?", quiz.VideoID).Update("quiz_id", quiz.ID).Error; err != nil {
			return err
		}

		quiz.Questions = saved
		return nil
	})
}

func (r *quizRepository) ListStructure(quizIDs []uint) (map[uint][]models.QuizQuestion, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("quiz repository is not initialised")
	}
	result := make(map[uint][]models.QuizQuestion, len(quizIDs))
	if len(quizIDs) == 0 {
		return result, nil
	}
	var questions []models.QuizQuestion
	if err := r.db.Where("quiz_id IN ?", quizIDs).Order("quiz_id ASC, position ASC").Find(&questions).Error; err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return result, nil
	}
	questionIDs := make([]uint, 0, len(questions))
	for _, question := range questions {
		questionIDs = append(questionIDs, question.ID)
	}
	var options []models.QuizOption
	if err := r.db.Where("question_id IN ?", questionIDs).Order("question_id ASC, position ASC").Find(&options).Error; err != nil {
		return nil, err
	}
	optionsByQuestion := make(map[uint][]models.QuizOption, len(questionIDs))
	for _, option := range options {
		optionsByQuestion[option.QuestionID] = append(optionsByQuestion[option.QuestionID], option)
	}
	for _, question := range questions {
		question.Options = optionsByQuestion[question.ID]
		result[question.QuizID] = append(result[question.QuizID], question)
	}
	return result, nil
}

func (r *quizRepository) attachStructure(quiz *models.Quiz) error {
	structure, err := r.ListStructure([]uint{quiz.ID})
	if err != nil {
		return err
	}
	quiz.Questions = structure[quiz.ID]
	return nil
}
