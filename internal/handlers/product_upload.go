package handlers

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
)

// productRequest is the JSON body for product create and update. Nil fields
// were not sent.
type productRequest struct {
	Name            *string                 `json:"name"`
	Description     *string                 `json:"description"`
	Price           *float64                `json:"price"`
	MRP             *float64                `json:"mrp"`
	Category        *string                 `json:"category"`
	Bestseller      *bool                   `json:"bestseller"`
	InStock         *bool                   `json:"inStock"`
	Options         *[]models.ProductOption `json:"options"`
	RelatedProducts *[]string               `json:"relatedProducts"`
	Images          *[]string               `json:"images"`
}

// productInput is a productRequest plus any image files that came with a
// multipart request. For multipart, Images holds the keepImages field.
type productInput struct {
	productRequest
	Files []*multipart.FileHeader
}

func parseProductRequest(c *gin.Context) (productInput, error) {
	if strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
		return parseMultipartProductRequest(c)
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return productInput{}, fmt.Errorf("invalid body: %w", err)
	}
	return productInput{productRequest: req}, nil
}

func parseMultipartProductRequest(c *gin.Context) (productInput, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return productInput{}, err
	}

	input := productInput{}

	if value, ok := c.GetPostForm("name"); ok {
		name := strings.TrimSpace(value)
		input.Name = &name
	}

	if value, ok := c.GetPostForm("description"); ok {
		description := strings.TrimSpace(value)
		input.Description = &description
	}

	if value, ok := c.GetPostForm("category"); ok {
		category := strings.TrimSpace(value)
		input.Category = &category
	}

	for field, target := range map[string]**float64{"price": &input.Price, "mrp": &input.MRP} {
		if value, ok := c.GetPostForm(field); ok {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return productInput{}, fmt.Errorf("invalid %s", field)
			}
			*target = &parsed
		}
	}

	for field, target := range map[string]**bool{"bestseller": &input.Bestseller, "inStock": &input.InStock} {
		if value, ok := c.GetPostForm(field); ok {
			parsed, err := parseBoolValue(value)
			if err != nil {
				return productInput{}, fmt.Errorf("invalid %s", field)
			}
			*target = &parsed
		}
	}

	if value, ok := c.GetPostForm("options"); ok && strings.TrimSpace(value) != "" {
		var options []models.ProductOption
		if err := json.Unmarshal([]byte(value), &options); err != nil {
			return productInput{}, fmt.Errorf("options must be a JSON array")
		}
		input.Options = &options
	}

	if values, ok := c.GetPostFormArray("relatedProducts"); ok {
		ids, err := formList(values)
		if err != nil {
			return productInput{}, fmt.Errorf("invalid relatedProducts")
		}
		input.RelatedProducts = &ids
	}

	if values, ok := c.GetPostFormArray("keepImages"); ok {
		urls, err := formList(values)
		if err != nil {
			return productInput{}, fmt.Errorf("invalid keepImages")
		}
		input.Images = &urls
	}

	if form := c.Request.MultipartForm; form != nil {
		input.Files = append(input.Files, form.File["images"]...)
	}

	return input, nil
}

// formList accepts repeated fields or a single field holding a JSON array.
func formList(values []string) ([]string, error) {
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var out []string
		if err := json.Unmarshal([]byte(values[0]), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}
