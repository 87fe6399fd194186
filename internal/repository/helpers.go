package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockOrCreate 在事务内保证唯一键对应的行存在，并以 FOR UPDATE 读取它。
// seed 仅在行不存在时插入；并发插入由唯一索引兜底，冲突时忽略。
func lockOrCreate[T any](tx *gorm.DB, seed *T, query string, args ...interface{}) (*T, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, err
	}

	var row T
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, args...).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
