package model

import "time"

type User struct {
	ID          uint64 `gorm:"primaryKey"`
	Username    string `gorm:"uniqueIndex;size:32;not null"`
	Password    string `gorm:"size:255;not null" json:"-"`
	Email       string `gorm:"uniqueIndex;size:64;not null"`
	IsStaff     bool   `gorm:"not null;default:false"`
	IsSuperuser bool   `gorm:"not null;default:false"`
	IsBot       bool   `gorm:"not null;default:false"`
	IsActive    bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AnonymousUserID marks requests without a logged-in user.
const AnonymousUserID uint64 = 0

// Anonymous returns the zero user used for unauthenticated requests.
func Anonymous() *User {
	return &User{ID: AnonymousUserID}
}

func (u *User) IsAnonymous() bool {
	return u == nil || u.ID == AnonymousUserID
}
