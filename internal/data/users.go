package data

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gee2424/HubFreelance-sub001/internal/normalize"
)

// UsersStore performs user DB operations.
type UsersStore struct {
	db *gorm.DB
}

// NewUsersStore returns a UsersStore using the provided handle.
func NewUsersStore(db *gorm.DB) *UsersStore {
	return &UsersStore{db: db}
}

// CreateUser inserts a new user. Email and username are normalized; the
// password must already be hashed.
func (u *UsersStore) CreateUser(ctx context.Context, user *User) error {
	user.Email = normalize.Email(user.Email)
	user.Username = normalize.Username(user.Username)
	if user.Role == "" {
		user.Role = RoleClient
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	return translate(u.db.WithContext(ctx).Create(user).Error)
}

// GetUserByID finds a user by primary key.
func (u *UsersStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	if err := u.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.db.WithContext(ctx).Where("email = ?", normalize.Email(email)).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByProviderID finds the local mirror of an identity-provider account.
func (u *UsersStore) GetUserByProviderID(ctx context.Context, providerID string) (*User, error) {
	var user User
	err := u.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UserExists checks if a user exists by id.
func (u *UsersStore) UserExists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := u.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UserFilter narrows ListUsers.
type UserFilter struct {
	Role  Role
	Limit int
}

// ListUsers returns users ordered by id.
func (u *UsersStore) ListUsers(ctx context.Context, f UserFilter) ([]User, error) {
	q := u.db.WithContext(ctx).Order("id ASC").Limit(clampLimit(f.Limit, 100, 500))
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	users := []User{}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UserUpdate carries the profile fields a user may edit. Nil fields are
// left untouched.
type UserUpdate struct {
	Username *string `json:"username,omitempty"`
	FullName *string `json:"fullName,omitempty"`
	Active   *bool   `json:"active,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

// UpdateUser applies upd to the user and returns the stored row.
func (u *UsersStore) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*User, error) {
	changes := map[string]any{"updated_at": time.Now().UTC()}
	if upd.Username != nil {
		changes["username"] = normalize.Username(*upd.Username)
	}
	if upd.FullName != nil {
		changes["full_name"] = *upd.FullName
	}
	if upd.Active != nil {
		changes["active"] = *upd.Active
	}
	if upd.Role != nil {
		changes["role"] = *upd.Role
	}
	res := u.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return u.GetUserByID(ctx, id)
}
