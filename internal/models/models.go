package models

import (
	"database/sql"
	"time"
)

// User is a row in the users table. The password column holds a bcrypt hash
// and is never serialized; responses go through UserDTO.
type User struct {
	ID        string
	Username  string
	Email     string
	Password  string
	Photo     sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Task is a row in the tasks table. Files holds a JSON-encoded array of
// attachment URLs, or NULL when the task has no attachments. An empty list is
// always stored as NULL, never as "[]".
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description sql.NullString
	Done        bool
	Files       sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UserDTO struct {
	ID       string  `json:"_id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Photo    *string `json:"photo"`
}

type TaskDTO struct {
	ID          string  `json:"_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Done        bool    `json:"done"`
	Files       *string `json:"files"`
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func (u User) DTO() UserDTO {
	return UserDTO{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Photo:    nullable(u.Photo),
	}
}

func (t Task) DTO() TaskDTO {
	return TaskDTO{
		ID:          t.ID,
		Title:       t.Title,
		Description: nullable(t.Description),
		Done:        t.Done,
		Files:       nullable(t.Files),
	}
}
