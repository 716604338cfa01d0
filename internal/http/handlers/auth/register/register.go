// Package register реализует HTTP-обработчик регистрации пользователя.
//
// Принимает JSON {email, password} или multipart-форму с полями email, password
// и необязательным файлом profile_pic.
package register

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/gabrielstm/cyoa-backend/internal/http/response"
	"github.com/gabrielstm/cyoa-backend/internal/lib/sl"
	"github.com/gabrielstm/cyoa-backend/internal/models"
	"github.com/gabrielstm/cyoa-backend/internal/services/auth"
)

// FormFile: имя поля multipart-формы с аватаром.
const FormFile = "profile_pic"

// Request: входные данные для регистрации.
// Длина пароля снизу проверяется сервисом, сверху ограничена bcrypt в байтах.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"maxbytes=72"`
}

// Service описывает интерфейс бизнес-логики регистрации.
type Service interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы на регистрацию.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
	maxBytes int64
}

// New создает Handler. maxBytes ограничивает размер тела запроса вместе с файлом.
func New(log *slog.Logger, service Service, maxBytes int64) *Handler {
	v := validator.New()
	_ = v.RegisterValidation("maxbytes", maxBytesField)
	return &Handler{
		log:      log,
		service:  service,
		validate: v,
		maxBytes: maxBytes,
	}
}

// maxBytesField ограничивает длину строки в байтах, а не в символах, как тег max.
func maxBytesField(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// ServeHTTP godoc
// @Summary Регистрация пользователя
// @Description Создает пользователя. Принимает JSON или multipart/form-data с необязательным файлом profile_pic.
// @Tags Auth
// @Accept json,mpfd
// @Produce json
// @Param request body Request true "Email и пароль"
// @Success 201 {object} models.PublicUser "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Email занят, слабый пароль или некорректное тело"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	req, upload, err := h.decode(r)
	if err != nil {
		log.Info("failed to decode request body", sl.Err(err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.WriteError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		response.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			response.WriteError(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		ProfilePic: upload,
	})
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		log.Info("email already registered")
		response.WriteError(w, r, http.StatusBadRequest, auth.ErrEmailTaken.Error())
		return
	case errors.Is(err, auth.ErrWeakPassword):
		log.Info("weak password rejected")
		response.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		log.Info("password too long")
		response.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.Error("registration failed", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, response.InternalError)
		return
	}

	log.Info("user registered", slog.String("user_id", user.UUID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, user.Public())
}

func (h *Handler) decode(r *http.Request) (Request, *auth.Upload, error) {
	var req Request
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, nil, err
		}
		return req, nil, nil
	}

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		return req, nil, err
	}
	req.Email = r.FormValue("email")
	req.Password = r.FormValue("password")

	file, header, err := r.FormFile(FormFile)
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, nil, err
	}
	if len(data) == 0 {
		return req, nil, fmt.Errorf("empty %s", FormFile)
	}
	return req, &auth.Upload{Data: data, Ext: filepath.Ext(header.Filename)}, nil
}
