// Package access manages user accounts and the acting-user lookup.
package access

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/zulandar/changeboard/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("access: user not found")
	// ErrSelfModification is returned when an admin tries to deactivate or
	// delete their own account.
	ErrSelfModification = errors.New("access: cannot modify your own account")
	// ErrInvalidCredentials signals a wrong email or password, or an inactive account.
	ErrInvalidCredentials = errors.New("access: invalid credentials")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("access: email already registered")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Roles lists the assignable roles.
var Roles = []string{models.RoleAdmin, models.RoleReviewer, models.RoleSubmitter, models.RoleViewer}

// RegisterInput holds the fields of a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// InputError lists the problems with a RegisterInput.
type InputError struct {
	Problems []string
}

func (e *InputError) Error() string {
	return "access: invalid user: " + strings.Join(e.Problems, "; ")
}

func validRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Register validates in and creates an active user with a bcrypt hash.
func Register(db *gorm.DB, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	if in.Role == "" {
		in.Role = models.RoleViewer
	}

	var problems []string
	if in.Name == "" {
		problems = append(problems, "name is required")
	}
	if in.Email == "" {
		problems = append(problems, "email is required")
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		problems = append(problems, fmt.Sprintf("email %q is not valid", in.Email))
	}
	if len(in.Password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if !validRole(in.Role) {
		problems = append(problems, fmt.Sprintf("role %q is not one of %s", in.Role, strings.Join(Roles, ", ")))
	}
	if len(problems) > 0 {
		return nil, &InputError{Problems: problems}
	}

	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", in.Email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("access: check email: %w", err)
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, in.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("access: hash password: %w", err)
	}
	user := models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Active:       true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("access: create user: %w", err)
	}
	return &user, nil
}

// List returns all users ordered by name.
func List(db *gorm.DB) ([]models.User, error) {
	var users []models.User
	if err := db.Order("name ASC, id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("access: list users: %w", err)
	}
	return users, nil
}

// Get returns a user by id.
func Get(db *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("access: get user %d: %w", id, err)
	}
	return &user, nil
}

// GetByEmail returns a user by email, case-insensitively.
func GetByEmail(db *gorm.DB, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
		}
		return nil, fmt.Errorf("access: get user %s: %w", email, err)
	}
	return &user, nil
}

// SetRole changes a user's role.
func SetRole(db *gorm.DB, id uint, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if !validRole(role) {
		return &InputError{Problems: []string{fmt.Sprintf("role %q is not one of %s", role, strings.Join(Roles, ", "))}}
	}
	return update(db, id, "role", role)
}

// Activate re-enables a deactivated account.
func Activate(db *gorm.DB, id uint) error {
	return update(db, id, "active", true)
}

// Deactivate disables an account. Admins cannot deactivate themselves.
func Deactivate(db *gorm.DB, actorID, id uint) error {
	if actorID != 0 && actorID == id {
		return ErrSelfModification
	}
	return update(db, id, "active", false)
}

// Delete removes an account. Admins cannot delete themselves.
func Delete(db *gorm.DB, actorID, id uint) error {
	if actorID != 0 && actorID == id {
		return ErrSelfModification
	}
	result := db.Delete(&models.User{}, id)
	if result.Error != nil {
		return fmt.Errorf("access: delete user %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func update(db *gorm.DB, id uint, column string, value interface{}) error {
	result := db.Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return fmt.Errorf("access: update user %d %s: %w", id, column, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := Get(db, id); err != nil {
			return err
		}
	}
	return nil
}

// Authenticate checks email and password against an active account.
func Authenticate(db *gorm.DB, email, password string) (*models.User, error) {
	user, err := GetByEmail(db, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Actor is the identity behind a request. ID is zero for unregistered
// callers.
type Actor struct {
	ID    uint
	Email string
	Name  string
	Role  string
}

// Label returns the string recorded in history entries.
func (a Actor) Label() string {
	if a.Email != "" {
		return a.Email
	}
	return "anonymous"
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// ResolveActor maps a trusted header value onto a known user. Unknown or
// inactive emails yield an Actor without an ID or role.
func ResolveActor(db *gorm.DB, email string) (Actor, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Actor{}, nil
	}
	user, err := GetByEmail(db, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Actor{Email: email}, nil
		}
		return Actor{}, err
	}
	if !user.Active {
		return Actor{Email: email}, nil
	}
	return Actor{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}, nil
}
