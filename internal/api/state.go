package api

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/BhargavCodes/ai-vault/internal/models"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("User not found")
	ErrFileNotFound       = errors.New("File not found")
	ErrForbidden          = errors.New("Forbidden")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrWrongPassword      = errors.New("Incorrect old password")
	ErrInvalidResetToken  = errors.New("Invalid or expired token")
)

const resetTokenTTL = 15 * time.Minute

type userRecord struct {
	profile      models.UserProfile
	passwordHash []byte
}

type fileRecord struct {
	entity models.FileEntity
	owner  int64
	data   []byte
}

// State is the in-memory data behind the stub backend.
type State struct {
	mu          sync.RWMutex
	users       map[int64]*userRecord
	names       map[string]int64
	files       map[int64]*fileRecord
	history     []models.ActivityLog
	nextUserID  int64
	nextFileID  int64
	nextLogID   int64
	resetTokens *cache.Cache
	now         func() time.Time
}

func NewState() *State {
	return &State{
		users:       make(map[int64]*userRecord),
		names:       make(map[string]int64),
		files:       make(map[int64]*fileRecord),
		resetTokens: cache.New(resetTokenTTL, time.Minute),
		now:         time.Now,
	}
}

// CreateUser registers an account. Names are unique case-insensitively.
func (s *State) CreateUser(name string, age int, password string, role models.UserRole) (models.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return models.UserProfile{}, errors.New("Missing required fields (name, age, password)")
	}
	if role == "" {
		role = models.UserRoleUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	if _, exists := s.names[key]; exists {
		return models.UserProfile{}, ErrUserExists
	}
	s.nextUserID++
	rec := &userRecord{
		profile: models.UserProfile{
			ID:   s.nextUserID,
			Name: name,
			Age:  age,
			Role: role,
		},
		passwordHash: hash,
	}
	s.users[rec.profile.ID] = rec
	s.names[key] = rec.profile.ID
	s.logLocked(rec.profile.ID, "User signed up", "/auth/signup")
	return rec.profile, nil
}

// Authenticate checks credentials and returns the user id.
func (s *State) Authenticate(name, password string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.names[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(s.users[id].passwordHash, []byte(password)) != nil {
		return 0, ErrInvalidCredentials
	}
	s.logLocked(id, "User logged in", "/auth/login")
	return id, nil
}

func (s *State) User(id int64) (models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return models.UserProfile{}, ErrUserNotFound
	}
	return rec.profile, nil
}

func (s *State) ChangePassword(id int64, oldPassword, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(oldPassword)) != nil {
		return ErrWrongPassword
	}
	rec.passwordHash = hash
	s.logLocked(id, "Changed password", "/auth/change-password")
	return nil
}

// IssueResetToken returns "" without error when the user does not exist.
func (s *State) IssueResetToken(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.names[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ""
	}
	token := uuid.NewString()
	s.resetTokens.Set(token, id, cache.DefaultExpiration)
	s.logLocked(id, "Requested password reset", "/auth/forgot-password")
	return token
}

// ResetPassword consumes a reset token.
func (s *State) ResetPassword(token, newPassword string) error {
	v, ok := s.resetTokens.Get(token)
	if !ok {
		return ErrInvalidResetToken
	}
	s.resetTokens.Delete(token)
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	id := v.(int64)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	rec.passwordHash = hash
	s.logLocked(id, "Reset password", "/auth/reset-password")
	return nil
}

func (s *State) SetAvatar(id int64, filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return "", ErrUserNotFound
	}
	url := "/uploads/avatars/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	rec.profile.ProfilePicture = &url
	s.logLocked(id, "Updated profile picture", "/files/upload/profile")
	return url, nil
}

func (s *State) ListUsers(limit int) []models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.UserProfile, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, rec.profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DeleteUser removes the account and every file it owns.
func (s *State) DeleteUser(actor, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	delete(s.names, strings.ToLower(rec.profile.Name))
	for fid, f := range s.files {
		if f.owner == id {
			delete(s.files, fid)
		}
	}
	s.logLocked(actor, fmt.Sprintf("Deleted user %d", id), fmt.Sprintf("/users/%d", id))
	return nil
}

func (s *State) AssignRole(actor, id int64, role models.UserRole) (models.UserProfile, error) {
	if role != models.UserRoleAdmin && role != models.UserRoleUser {
		return models.UserProfile{}, fmt.Errorf("Invalid role: %s. Must be 'admin' or 'user'.", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return models.UserProfile{}, errors.New("Target user not found")
	}
	rec.profile.Role = role
	s.logLocked(actor, fmt.Sprintf("Changed role of user %d to %s", id, role), "/auth/assign-role")
	return rec.profile, nil
}

// AddFile stores an upload. The declared type is replaced by a sniffed one when it is
// missing or generic.
func (s *State) AddFile(owner int64, filename, declaredType string, data []byte) models.FileEntity {
	fileType := declaredType
	if fileType == "" || fileType == "application/octet-stream" {
		fileType = mimetype.Detect(data).String()
	}
	if i := strings.Index(fileType, ";"); i >= 0 {
		fileType = fileType[:i]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFileID++
	rec := &fileRecord{
		entity: models.FileEntity{
			ID:         s.nextFileID,
			Filename:   filename,
			FileType:   fileType,
			URL:        fmt.Sprintf("/uploads/%d/%s", s.nextFileID, filename),
			UploadedAt: models.Timestamp{Time: s.now().UTC()},
		},
		owner: owner,
		data:  data,
	}
	s.files[rec.entity.ID] = rec
	s.logLocked(owner, "Uploaded file "+filename, "/files/upload")
	return rec.entity
}

// Files returns the owner's files in upload order.
func (s *State) Files(owner int64) []models.FileEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FileEntity, 0)
	for _, rec := range s.files {
		if rec.owner == owner {
			out = append(out, rec.entity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *State) file(owner, id int64) (*fileRecord, error) {
	rec, ok := s.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	if rec.owner != owner {
		return nil, ErrForbidden
	}
	return rec, nil
}

func (s *State) File(owner, id int64) (models.FileEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.file(owner, id)
	if err != nil {
		return models.FileEntity{}, err
	}
	return rec.entity, nil
}

func (s *State) DeleteFile(owner, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.file(owner, id)
	if err != nil {
		return err
	}
	delete(s.files, id)
	s.logLocked(owner, "Deleted file "+rec.entity.Filename, fmt.Sprintf("/files/delete/%d", id))
	return nil
}

func (s *State) RenameFile(owner, id int64, filename string) (models.FileEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.file(owner, id)
	if err != nil {
		return models.FileEntity{}, err
	}
	rec.entity.Filename = filename
	s.logLocked(owner, "Renamed file to "+filename, fmt.Sprintf("/files/%d/rename", id))
	return rec.entity, nil
}

// Analyze fills the AI fields using the local analyzer.
func (s *State) Analyze(owner, id int64) (models.FileEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.file(owner, id)
	if err != nil {
		return models.FileEntity{}, err
	}
	result := analyze(rec.entity.Filename, rec.entity.FileType, rec.data)
	rec.entity.Summary = &result.summary
	rec.entity.AITags = &result.tags
	if result.ocrText != "" {
		rec.entity.OCRText = &result.ocrText
	}
	if result.vision != "" {
		rec.entity.VisionAnalysis = &result.vision
	}
	rec.entity.IsAnalyzed = true
	s.logLocked(owner, "Analyzed file "+rec.entity.Filename, fmt.Sprintf("/files/%d/analyze", id))
	return rec.entity, nil
}

func (s *State) History(owner int64) []models.ActivityLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ActivityLog, 0)
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].UserID == owner {
			out = append(out, s.history[i])
		}
	}
	return out
}

func (s *State) logLocked(userID int64, action, route string) {
	s.nextLogID++
	s.history = append(s.history, models.ActivityLog{
		ID:        s.nextLogID,
		UserID:    userID,
		Action:    action,
		Route:     route,
		Timestamp: models.Timestamp{Time: s.now().UTC()},
	})
}
