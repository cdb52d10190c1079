package user

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/userd/internal/auth"
	"github.com/wichananm65/userd/internal/logging"
)

type Handler struct {
	service *Service
	logger  logging.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Profile
}

type searchRequest struct {
	SearchValue string `json:"search_value"`
}

// sessionResponse renders a user with its token as one flat object.
type sessionResponse struct {
	PublicUser
	Token string `json:"token"`
}

func NewHandler(service *Service, logger logging.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterPublicRoutes(router fiber.Router) {
	router.Post("/register", h.register)
	router.Post("/login", h.login)
	router.Get("/", h.listUsers)
	router.Get("/search/:search_key", h.searchUsers)
}

// RegisterProtectedRoutes mounts the routes that require guard to admit the request.
func (h *Handler) RegisterProtectedRoutes(router fiber.Router, guard fiber.Handler) {
	router.Get("/:id", guard, h.getUser)
	router.Put("/:id", guard, h.updateUser)
	router.Delete("/:id", guard, h.deleteUser)
}

func (h *Handler) register(c *fiber.Ctx) error {
	payload := new(registerRequest)
	if err := c.BodyParser(payload); err != nil {
		return h.fail(c, ErrMalformedBody)
	}

	session, err := h.service.Register(c.UserContext(), RegisterInput{
		Email:    payload.Email,
		Password: payload.Password,
		Profile:  payload.Profile,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(toSessionResponse(session))
}

func (h *Handler) login(c *fiber.Ctx) error {
	payload := new(loginRequest)
	if err := c.BodyParser(payload); err != nil {
		return h.fail(c, ErrMalformedBody)
	}

	session, err := h.service.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(toSessionResponse(session))
}

func (h *Handler) getUser(c *fiber.Ctx) error {
	found, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(found.Public())
}

func (h *Handler) listUsers(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return h.fail(c, err)
	}

	users, err := h.service.List(c.UserContext(), page)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(publicUsers(users))
}

func (h *Handler) searchUsers(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return h.fail(c, err)
	}

	// a body value wins over the query parameter
	value := c.Query("search_value")
	if len(bytes.TrimSpace(c.Body())) > 0 {
		payload := new(searchRequest)
		if err := json.Unmarshal(c.Body(), payload); err != nil {
			return h.fail(c, ErrMalformedBody)
		}
		value = payload.SearchValue
	}

	users, err := h.service.Search(c.UserContext(), c.Params("search_key"), value, page)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(publicUsers(users))
}

func (h *Handler) updateUser(c *fiber.Ctx) error {
	input, err := decodeUpdate(c.Body())
	if err != nil {
		return h.fail(c, err)
	}

	session, err := h.service.Update(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return h.fail(c, err)
	}
	h.audit(c, "user updated")
	return c.JSON(toSessionResponse(session))
}

func (h *Handler) deleteUser(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	h.audit(c, "user deleted")
	return c.JSON(fiber.Map{"message": "user deleted"})
}

// audit records which token subject changed which user. The subject may
// differ from the target id; the guard does not check ownership.
func (h *Handler) audit(c *fiber.Ctx, msg string) {
	actor, err := auth.SubjectFromCtx(c)
	if err != nil {
		actor = "unknown"
	}
	h.logger.Info(c.UserContext(), msg, "id", c.Params("id"), "actor", actor)
}

// fail renders err as {"error": ...} with the status its kind maps to.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		h.logger.Error(c.UserContext(), "request failed",
			"method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownEmail), errors.Is(err, ErrWrongPassword):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrEmailTaken):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func toSessionResponse(s Session) sessionResponse {
	return sessionResponse{PublicUser: s.User.Public(), Token: s.Token}
}

func parsePage(c *fiber.Ctx) (Page, error) {
	skip, err := queryInt(c, "skip")
	if err != nil {
		return Page{}, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return Page{}, err
	}
	return Page{Skip: skip, Limit: limit}, nil
}

func queryInt(c *fiber.Ctx, key string) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrInvalidPagination
	}
	return v, nil
}

// decodeUpdate reads only the keys the request actually carried. String
// fields must hold JSON strings and age must hold an integer.
func decodeUpdate(body []byte) (UpdateInput, error) {
	in := UpdateInput{Profile: map[string]string{}}
	if len(bytes.TrimSpace(body)) == 0 {
		return in, nil
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return UpdateInput{}, ErrMalformedBody
	}

	for key, value := range raw {
		if key == keyAge {
			var age *int
			if err := json.Unmarshal(value, &age); err != nil {
				return UpdateInput{}, fieldTypeError(key, "an integer")
			}
			in.Age = age
			continue
		}

		_, isProfile := lookupProfileField(key)
		if key != keyEmail && key != keyPassword && !isProfile {
			continue
		}

		var s *string
		if err := json.Unmarshal(value, &s); err != nil {
			return UpdateInput{}, fieldTypeError(key, "a string")
		}
		if s == nil {
			continue
		}

		switch key {
		case keyEmail:
			in.Email = s
		case keyPassword:
			in.Password = s
		default:
			in.Profile[key] = *s
		}
	}
	return in, nil
}
