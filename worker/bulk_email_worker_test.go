package worker

import (
	"log"
	"os"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"uplinex/models"
	"uplinex/utils"
)

type fakeMailer struct {
	mu    sync.Mutex
	sends []string
	err   error
}

func (f *fakeMailer) Send(to, subject, htmlBody, textBody string) (utils.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, to)
	if f.err != nil {
		return utils.SendResult{}, f.err
	}
	return utils.SendResult{Success: true, MessageID: "test-message-id"}, nil
}

func newTestWorker(t *testing.T) (*BulkEmailWorker, sqlmock.Sqlmock, *fakeMailer) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	mailer := &fakeMailer{}
	bw := NewBulkEmailWorker(gdb, mailer,
		utils.NewLinkTracker("https://app.uplinex.io"),
		log.New(os.Stdout, "TEST: ", log.LstdFlags))
	return bw, mock, mailer
}

func TestProcessJobClaim(t *testing.T) {
	t.Run("lost claim stops processing", func(t *testing.T) {
		bw, mock, mailer := newTestWorker(t)

		// Another instance already moved the job out of pending.
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "bulk_email_jobs"`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		job := models.BulkEmailJob{
			UserID:     1,
			ContactIDs: []uint{10, 11},
			TemplateID: utils.Pointer(uint(3)),
			Status:     models.BulkJobPending,
		}
		job.ID = 5
		bw.processJob(&job)

		assert.Empty(t, mailer.sends)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSendToContact(t *testing.T) {
	t.Run("opted out contact is skipped", func(t *testing.T) {
		bw, mock, mailer := newTestWorker(t)

		mock.ExpectQuery(`SELECT \* FROM "contacts"`).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "user_id", "email", "is_unsubscribed", "is_do_not_contact"}).
				AddRow(10, 1, "lead@example.com", true, false))

		job := models.BulkEmailJob{UserID: 1, ContactIDs: []uint{10}}
		job.ID = 5
		err := bw.sendToContact(&job, 10, "Hi", "<p>Hi</p>", "Hi")

		assert.ErrorContains(t, err, "opted out")
		assert.Empty(t, mailer.sends)
	})

	t.Run("missing contact returns lookup error", func(t *testing.T) {
		bw, mock, mailer := newTestWorker(t)

		mock.ExpectQuery(`SELECT \* FROM "contacts"`).
			WillReturnError(gorm.ErrRecordNotFound)

		job := models.BulkEmailJob{UserID: 1}
		err := bw.sendToContact(&job, 99, "Hi", "<p>Hi</p>", "")

		assert.ErrorContains(t, err, "contact lookup failed")
		assert.Empty(t, mailer.sends)
	})
}

func TestRenderTemplate(t *testing.T) {
	vars := map[string]string{
		"first_name": "Dana",
		"company":    "Acme",
	}

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"tight braces", "Hello {{first_name}}!", "Hello Dana!"},
		{"spaced braces", "Hello {{ first_name }}!", "Hello Dana!"},
		{"multiple variables", "{{first_name}} at {{company}}", "Dana at Acme"},
		{"repeated variable", "{{first_name}} {{first_name}}", "Dana Dana"},
		{"unknown variable untouched", "Hi {{nickname}}", "Hi {{nickname}}"},
		{"no variables", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.content, vars))
		})
	}
}

func TestPersonalizationVars(t *testing.T) {
	contact := &models.Contact{
		Email:     "lead@example.com",
		FirstName: "Dana",
		LastName:  "Reyes",
		Company:   "Acme",
	}

	t.Run("contact fields populate defaults", func(t *testing.T) {
		vars := personalizationVars(contact, nil)

		assert.Equal(t, "Dana", vars["first_name"])
		assert.Equal(t, "Reyes", vars["last_name"])
		assert.Equal(t, "lead@example.com", vars["email"])
		assert.Equal(t, "Acme", vars["company"])
	})

	t.Run("custom variables win on collision", func(t *testing.T) {
		vars := personalizationVars(contact, map[string]string{
			"first_name": "Friend",
			"promo_code": "SPRING26",
		})

		assert.Equal(t, "Friend", vars["first_name"])
		assert.Equal(t, "SPRING26", vars["promo_code"])
		assert.Equal(t, "Acme", vars["company"])
	})
}
