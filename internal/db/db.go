package db

import (
	"fmt"

	"codeq/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to PostgreSQL. TranslateError makes unique violations surface
// as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return conn, nil
}

// Init opens the database, migrates it and seeds the tag catalog.
func Init(dsn string, logger zerolog.Logger) error {
	conn, err := Open(dsn)
	if err != nil {
		return err
	}
	logger.Info().Msg("database connection established")

	if err := Migrate(conn); err != nil {
		return err
	}
	logger.Info().Msg("database migration completed")

	if err := seedTags(conn, logger); err != nil {
		logger.Warn().Err(err).Msg("tag seeding skipped")
	}
	DB = conn
	return nil
}

func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.User{},
		&models.Tag{},
		&models.Question{},
		&models.Answer{},
		&models.Vote{},
		&models.SavedQuestion{},
		&models.Notification{},
		&models.ReputationLog{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	return migrateConstraints(conn)
}

// constraintStatements holds what gorm tags cannot express. Every statement
// is idempotent.
var constraintStatements = []string{
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_votes_single_target') THEN
			ALTER TABLE votes ADD CONSTRAINT chk_votes_single_target CHECK ((question_id IS NULL) <> (answer_id IS NULL));
		END IF;
	END $$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_votes_value') THEN
			ALTER TABLE votes ADD CONSTRAINT chk_votes_value CHECK (value IN (1, -1));
		END IF;
	END $$;`,
	// Votes are removed with their target.
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_votes_question') THEN
			ALTER TABLE votes ADD CONSTRAINT fk_votes_question FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE;
		END IF;
	END $$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_votes_answer') THEN
			ALTER TABLE votes ADD CONSTRAINT fk_votes_answer FOREIGN KEY (answer_id) REFERENCES answers(id) ON DELETE CASCADE;
		END IF;
	END $$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_votes_user') THEN
			ALTER TABLE votes ADD CONSTRAINT fk_votes_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE;
		END IF;
	END $$;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_answers_one_accepted ON answers (question_id) WHERE is_accepted`,
}

func migrateConstraints(conn *gorm.DB) error {
	for _, stmt := range constraintStatements {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate constraints: %w", err)
		}
	}
	return nil
}

func seedTags(conn *gorm.DB, logger zerolog.Logger) error {
	var count int64
	if err := conn.Model(&models.Tag{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count tags: %w", err)
	}
	if count > 0 {
		logger.Debug().Msg("tags already seeded, skipping")
		return nil
	}

	tags := []models.Tag{
		{Name: "JavaScript", Color: "#F7DF1E", Description: "Questions about the JavaScript language"},
		{Name: "TypeScript", Color: "#3178C6", Description: "Questions about TypeScript"},
		{Name: "React", Color: "#61DAFB", Description: "Questions about the React library"},
		{Name: "Next.js", Color: "#000000", Description: "Questions about the Next.js framework"},
		{Name: "Node.js", Color: "#339933", Description: "Questions about Node.js"},
		{Name: "Python", Color: "#3776AB", Description: "Questions about the Python language"},
		{Name: "CSS", Color: "#1572B6", Description: "Questions about CSS styling"},
		{Name: "HTML", Color: "#E34F26", Description: "Questions about HTML markup"},
		{Name: "SQL", Color: "#4479A1", Description: "Questions about SQL databases"},
		{Name: "Git", Color: "#F05032", Description: "Questions about Git version control"},
		{Name: "Go", Color: "#00ADD8", Description: "Questions about the Go language"},
	}

	for _, tag := range tags {
		if err := conn.Create(&tag).Error; err != nil {
			logger.Warn().Err(err).Str("tag", tag.Name).Msg("failed to create tag")
		}
	}
	logger.Info().Int("count", len(tags)).Msg("initial tags created")
	return nil
}
