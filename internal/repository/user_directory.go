package repository

import "gorm.io/gorm"

// UserDirectory answers existence checks against the application's users
// table. User CRUD itself lives in the wider application, not here.
type UserDirectory interface {
	Exists(userID string) (bool, error)
}

type userDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) UserDirectory {
	return &userDirectory{db: db}
}

func (r *userDirectory) Exists(userID string) (bool, error) {
	var count int64
	err := r.db.Table("users").Where("id = ?", userID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
