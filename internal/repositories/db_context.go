package repositories

import (
	"fmt"
	"github.com/glebarez/sqlite"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(connectionString string) (*DbContext, error) {
	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	err := c.DB.AutoMigrate(entities.User{})
	if err != nil {
		return fmt.Errorf("failed to migrate User entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.Registration{})
	if err != nil {
		return fmt.Errorf("failed to migrate Registration entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.PaymentClaim{})
	if err != nil {
		return fmt.Errorf("failed to migrate PaymentClaim entity: %w", err)
	}

	err = c.DB.AutoMigrate(entities.ArbitraryData{})
	if err != nil {
		return fmt.Errorf("failed to migrate ArbitraryData entity: %w", err)
	}

	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
