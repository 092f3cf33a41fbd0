package database

import (
	"errors"
	"fmt"

	"github.com/xelth-com/loomtrace/internal/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Exists returns a NotFound error naming label when no T has this id.
func Exists[T any](tx *gorm.DB, id uint, label string) error {
	var count int64
	if err := tx.Model(new(T)).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check %s %d: %w", label, id, err)
	}
	if count == 0 {
		return apperr.NotFound("%s %d not found", label, id)
	}
	return nil
}

// First loads T by id, translating a missing row into NotFound.
func First[T any](tx *gorm.DB, id uint, label string) (*T, error) {
	var out T
	if err := tx.First(&out, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("%s %d not found", label, id)
		}
		return nil, fmt.Errorf("load %s %d: %w", label, id, err)
	}
	return &out, nil
}

// FirstForUpdate is First with a row lock held until the transaction ends.
func FirstForUpdate[T any](tx *gorm.DB, id uint, label string) (*T, error) {
	return First[T](tx.Clauses(clause.Locking{Strength: "UPDATE"}), id, label)
}
