// Package model defines the data structures used throughout the application.
package model

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

// Role is the capability flag on a User.
//
// Everyone who signs up is an ATHLETE. F3 members who lead workouts are
// promoted to HIM, which is what allows them to post a backblast on behalf
// of the PAX. Roles only ever go up; nothing in the app demotes a user.
type Role string

const (
	RoleAthlete Role = "ATHLETE"
	RoleHIM     Role = "HIM"
)

// User is a local account tied to one identity-provider subject.
//
// WHY TWO IDENTIFIERS?
// SubjectID is the Firebase uid and is the key we upsert on. ID is our own
// xid, used as the foreign key on every record table, so the records never
// depend on the provider's numbering.
//
// Profile fields are pointers because the provider may not supply them and
// an absent claim must not overwrite a value we already have.
type User struct {
	ID        string    `gorm:"primaryKey;size:20"              json:"id"`
	SubjectID string    `gorm:"column:subject_id;size:128"      json:"subjectId"`
	Email     *string   `gorm:"column:email;size:255"           json:"email"`
	FirstName *string   `gorm:"column:first_name;size:255"      json:"firstName"`
	LastName  *string   `gorm:"column:last_name;size:255"       json:"lastName"`
	Handle    *string   `gorm:"column:handle;size:255"          json:"f3Handle"`
	PhotoURL  *string   `gorm:"column:photo_url"                json:"photoURL"`
	Role      Role      `gorm:"column:role;size:16"             json:"role"`
	CreatedAt time.Time `gorm:"column:created_at"               json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at"               json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// BeforeCreate assigns the xid. It also runs on the insert half of an upsert;
// when the row already exists the generated id is discarded by the database.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = xid.New().String()
	}
	if u.Role == "" {
		u.Role = RoleAthlete
	}
	return nil
}

// IsHIM reports whether the user may post a backblast.
func (u *User) IsHIM() bool {
	return u != nil && u.Role == RoleHIM
}

// DisplayName is what the pages greet the user with.
func (u *User) DisplayName() string {
	switch {
	case u.Handle != nil && *u.Handle != "":
		return *u.Handle
	case u.FirstName != nil && *u.FirstName != "":
		return *u.FirstName
	case u.Email != nil:
		return *u.Email
	}
	return "PAX"
}
