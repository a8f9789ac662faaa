package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/config"
	"bitbucket.org/mmdatafocus/tracking_backend/utils"
	"gorm.io/gorm"
)

// RoleList is stored as a JSON array so one user can act under several roles.
type RoleList []Role

func (r RoleList) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RoleList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	case nil:
		*r = nil
		return nil
	}
	return fmt.Errorf("cannot scan %T into RoleList", value)
}

func (r RoleList) Contains(role Role) bool {
	for _, have := range r {
		if have == role {
			return true
		}
	}
	return false
}

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:80;not null;unique" json:"username" binding:"required"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Roles     RoleList  `gorm:"type:json;not null" json:"roles"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Password string   `json:"password" binding:"required,min=8"`
	Roles    []string `json:"roles" binding:"required,min=1"`
}

type UpdateUserInput struct {
	Password *string  `json:"password"`
	IsActive *bool    `json:"is_active"`
	Roles    []string `json:"roles"`
}

func parseRoles(values []string) (RoleList, error) {
	if len(values) == 0 {
		return nil, errors.New("at least one role is required")
	}
	roles := make(RoleList, 0, len(values))
	for _, v := range values {
		role, err := ParseRole(v)
		if err != nil {
			return nil, err
		}
		if !roles.Contains(role) {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	roles, err := parseRoles(input.Roles)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[User](ctx, "username", input.Username, 0); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	user := User{
		Username: input.Username,
		Password: hashed,
		Roles:    roles,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func UpdateUser(ctx context.Context, id int, input *UpdateUserInput) (*User, error) {
	db := config.GetDB()
	user, err := GetUserById(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Password != nil && *input.Password != "" {
		hashed, err := utils.HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = hashed
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Roles != nil {
		roles, err := parseRoles(input.Roles)
		if err != nil {
			return nil, err
		}
		updates["roles"] = roles
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func GetUserById(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func ListUsers(ctx context.Context) ([]User, error) {
	db := config.GetDB()
	var users []User
	if err := db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
