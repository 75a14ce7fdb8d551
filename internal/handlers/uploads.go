package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/storage"
)

type imageUploader interface {
	SaveAll(ctx context.Context, files []*multipart.FileHeader) ([]string, error)
}

/*
POST /admin/api/uploads
- multipart "images" (or "image") files
- files that were stored before a failure stay stored and are returned
*/
func UploadImages(store imageUploader, maxImages int) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/uploads"

		form, err := c.MultipartForm()
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "multipart/form-data required")
			return
		}

		files := append([]*multipart.FileHeader{}, form.File["images"]...)
		files = append(files, form.File["image"]...)
		if len(files) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no images uploaded")
			return
		}
		if maxImages > 0 && len(files) > maxImages {
			respondWithError(c, http.StatusBadRequest, route, "too many images")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 6*requestTimeout)
		defer cancel()

		urls, err := store.SaveAll(ctx, files)
		if err != nil {
			status := http.StatusInternalServerError
			var invalid storage.InvalidImageError
			if errors.As(err, &invalid) {
				status = http.StatusBadRequest
			}
			logger.WithError(err).WithField("stored", len(urls)).WithField("requested", len(files)).Warn("upload partially failed")
			c.JSON(status, gin.H{"error": err.Error(), "urls": urls})
			return
		}

		c.JSON(http.StatusCreated, gin.H{"urls": urls})
	}
}
