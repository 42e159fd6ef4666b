package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/actionable-app/actionable/pkg/errors"
	"github.com/actionable-app/actionable/pkg/response"

	"github.com/actionable-app/actionable/internal/services"
	"github.com/actionable-app/actionable/internal/storage"
)

// maxAvatarBytes caps avatar uploads at 5 MiB.
const maxAvatarBytes = 5 << 20

var avatarExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// ProfileHandler serves profile and avatar endpoints.
type ProfileHandler struct {
	profiles *services.ProfileService
	avatars  *storage.Bucket
}

// NewProfileHandler constructs a ProfileHandler. The bucket may be nil when
// avatar uploads are disabled.
func NewProfileHandler(profiles *services.ProfileService, avatars *storage.Bucket) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, avatars: avatars}
}

// Get returns the current user's profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	user, err := h.profiles.Get(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// Update applies partial profile changes.
func (h *ProfileHandler) Update(c *gin.Context) {
	var req services.UpdateProfileInput
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.profiles.Update(requestContext(c), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// UploadAvatar accepts a multipart image, stores it in the avatars bucket and
// records its public URL. Re-uploading replaces the previous avatar in place.
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	if h.avatars == nil {
		response.Error(c, appErrors.NewBadRequest("Avatar uploads are not configured"))
		return
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("An avatar file is required"))
		return
	}
	if file.Size > maxAvatarBytes {
		response.Error(c, appErrors.NewBadRequest("Avatar must be 5 MB or smaller"))
		return
	}

	ext := strings.ToLower(path.Ext(file.Filename))
	if _, ok := avatarExtensions[ext]; !ok {
		response.Error(c, appErrors.NewBadRequest("Avatar must be a JPEG, PNG or WebP image"))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer src.Close()

	userID := currentUserID(c)
	objectPath := fmt.Sprintf("%s/avatar%s", userID, ext)
	publicURL, err := h.avatars.Save(objectPath, src)
	if err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.profiles.SetAvatar(requestContext(c), userID, publicURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// ServeAvatar streams a stored avatar. Mounted without auth; avatar URLs are
// plain static assets.
func (h *ProfileHandler) ServeAvatar(c *gin.Context) {
	if h.avatars == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	objectPath := c.Param("path")
	obj, err := h.avatars.Open(objectPath)
	if err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	defer obj.Close()

	contentType := mime.TypeByExtension(path.Ext(objectPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, obj)
}
