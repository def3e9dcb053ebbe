package storage

import (
	"io"
	"mime/multipart"

	"backend-navi/internal/apperr"
	"backend-navi/internal/shared/identity"
	"backend-navi/internal/shared/response"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		form, err := c.MultipartForm()
		if err != nil {
			return apperr.Validation("expected multipart form with files")
		}
		files, err := readFiles(form.File["files"])
		if err != nil {
			return err
		}
		objects, err := svc.Upload(c.UserContext(), userID, files)
		if err != nil {
			return err
		}
		return response.Created(c, fiber.Map{"files": objects})
	})

	r.Delete("/", func(c *fiber.Ctx) error {
		userID, err := identity.UserID(c)
		if err != nil {
			return err
		}
		var body struct {
			URL string `json:"url"`
		}
		if err := c.BodyParser(&body); err != nil || body.URL == "" {
			return apperr.Validation("invalid request", apperr.FieldError{Field: "url", Message: "url is required"})
		}
		if err := svc.Delete(c.UserContext(), userID, body.URL); err != nil {
			return err
		}
		return response.Message(c, "file deleted")
	})
}

func readFiles(headers []*multipart.FileHeader) ([]File, error) {
	files := make([]File, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, apperr.Validation("unreadable file")
		}
		body, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, apperr.Validation("unreadable file")
		}
		files = append(files, File{Name: h.Filename, ContentType: h.Header.Get("Content-Type"), Body: body})
	}
	return files, nil
}
