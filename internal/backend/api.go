package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/BhargavCodes/ai-vault/internal/models"
)

type credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Password string `json:"password"`
}

// Me fetches the identity behind the current token.
func (c *Client) Me(ctx context.Context) (*models.UserProfile, error) {
	var resp struct {
		User *models.UserProfile `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("identity response missing user")
	}
	return resp.User, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, name, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", credentials{Name: name, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login response missing token")
	}
	return resp.Token, nil
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/signup", req, nil)
}

// ForgotPassword starts a reset. The backend may hand the reset token back directly.
func (c *Client) ForgotPassword(ctx context.Context, name string) (string, error) {
	var resp struct {
		ResetToken string `json:"reset_token"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/auth/forgot-password", map[string]string{"name": name}, &resp)
	return resp.ResetToken, err
}

func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "new_password": newPassword}
	return c.doJSON(ctx, http.MethodPost, "/auth/reset-password", body, nil)
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"old_password": oldPassword, "new_password": newPassword}
	return c.doJSON(ctx, http.MethodPut, "/auth/change-password", body, nil)
}

func (c *Client) ListFiles(ctx context.Context) ([]models.FileEntity, error) {
	var resp struct {
		Files []models.FileEntity `json:"files"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/files/list", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Files == nil {
		resp.Files = []models.FileEntity{}
	}
	return resp.Files, nil
}

// Upload posts a document as multipart field "file".
func (c *Client) Upload(ctx context.Context, p Payload) error {
	return c.doMultipart(ctx, "/files/upload", "file", p, nil)
}

// UploadAvatar posts a profile image as multipart field "image" and returns its URL.
func (c *Client) UploadAvatar(ctx context.Context, p Payload) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	err := c.doMultipart(ctx, "/files/upload/profile", "image", p, &resp)
	return resp.URL, err
}

func (c *Client) Analyze(ctx context.Context, id int64) (*models.FileEntity, error) {
	return c.fileResult(ctx, http.MethodPost, fmt.Sprintf("/files/%d/analyze", id), nil)
}

func (c *Client) SuggestName(ctx context.Context, id int64) (string, error) {
	var resp struct {
		SuggestedName string `json:"suggested_name"`
	}
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/files/%d/suggest_name", id), nil, &resp); err != nil {
		return "", err
	}
	return resp.SuggestedName, nil
}

func (c *Client) Rename(ctx context.Context, id int64, filename string) (*models.FileEntity, error) {
	body := map[string]string{"filename": filename}
	return c.fileResult(ctx, http.MethodPut, fmt.Sprintf("/files/%d/rename", id), body)
}

func (c *Client) Chat(ctx context.Context, id int64, question string) (string, error) {
	var resp struct {
		Answer string `json:"answer"`
	}
	body := map[string]string{"question": question}
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/files/%d/chat", id), body, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}

func (c *Client) DeleteFile(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/files/delete/%d", id), nil, nil)
}

func (c *Client) History(ctx context.Context) ([]models.ActivityLog, error) {
	var resp struct {
		History []models.ActivityLog `json:"history"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/files/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

func (c *Client) ListUsers(ctx context.Context, limit int) ([]models.UserProfile, error) {
	var resp struct {
		Users []models.UserProfile `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/users?limit=%d", limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil, nil)
}

func (c *Client) AssignRole(ctx context.Context, id int64, role models.UserRole) error {
	body := map[string]string{"role": string(role)}
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/auth/assign-role/%d", id), body, nil)
}

func (c *Client) fileResult(ctx context.Context, method, path string, body any) (*models.FileEntity, error) {
	var resp struct {
		File *models.FileEntity `json:"file"`
	}
	if err := c.doJSON(ctx, method, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.File == nil {
		return nil, fmt.Errorf("%s response missing file", path)
	}
	return resp.File, nil
}
