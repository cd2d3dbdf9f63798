package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/xiaokaoba/shenlun-go-api/internal/models"
)

func setupRepoTestDB(t *testing.T, entities ...interface{}) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entities...))
	// The shared in-memory database outlives individual tests.
	for _, entity := range entities {
		require.NoError(t, db.Where("1 = 1").Delete(entity).Error)
	}
	return db
}

func newBankQuestion(questionType string, number int) models.Question {
	return models.Question{
		ID:             uuid.NewString(),
		Title:          "给定资料题",
		Content:        "根据给定资料作答。",
		QuestionType:   questionType,
		QuestionNumber: number,
	}
}

func TestQuestionRepositoryListByTypeFiltersAndOrders(t *testing.T) {
	db := setupRepoTestDB(t, &models.Question{}, &models.QuestionImage{})
	repo := NewQuestionRepository(db)

	second := newBankQuestion("概括题", 2)
	first := newBankQuestion("概括题", 1)
	other := newBankQuestion("对策题", 1)
	require.NoError(t, db.Create(&second).Error)
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&other).Error)

	questions, err := repo.ListByType(context.Background(), "概括题", 0)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.Equal(t, first.ID, questions[0].ID, "lower question number first")
	require.Equal(t, second.ID, questions[1].ID)

	limited, err := repo.ListByType(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestQuestionRepositoryRandomExcludes(t *testing.T) {
	db := setupRepoTestDB(t, &models.Question{}, &models.QuestionImage{})
	repo := NewQuestionRepository(db)

	keep := newBankQuestion("综合分析题", 1)
	skip := newBankQuestion("应用文写作题", 2)
	require.NoError(t, db.Create(&keep).Error)
	require.NoError(t, db.Create(&skip).Error)

	questions, err := repo.Random(context.Background(), 10, []string{skip.ID})
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, keep.ID, questions[0].ID)
}

func TestQuestionRepositoryCreateAndAttachImage(t *testing.T) {
	db := setupRepoTestDB(t, &models.Question{}, &models.QuestionImage{})
	repo := NewQuestionRepository(db)

	question := newBankQuestion("概括题", 1)
	require.NoError(t, repo.Create(context.Background(), &question))

	image := models.QuestionImage{
		ID:         uuid.NewString(),
		QuestionID: question.ID,
		ImageURL:   "https://cdn.example.com/q1.png",
		ImageType:  "material",
	}
	require.NoError(t, repo.AttachImage(context.Background(), &image))

	stored, err := repo.GetByID(context.Background(), question.ID)
	require.NoError(t, err)
	require.Len(t, stored.Images, 1)
	require.Equal(t, image.ImageURL, stored.Images[0].ImageURL)
}
