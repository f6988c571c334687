package webapp

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"starplanner/internal/model"
	"starplanner/internal/repository"
	"starplanner/internal/service"
)

const tokenTTL = 24 * time.Hour

// Server is the Mini App HTTP API: initData auth plus task CRUD. All core
// logic lives in the services; this layer only validates and translates.
type Server struct {
	app       *fiber.App
	users     *repository.UserRepository
	taskSvc   *service.TaskService
	validate  *validator.Validate
	botToken  string
	jwtSecret []byte
}

func NewServer(users *repository.UserRepository, taskSvc *service.TaskService, botToken, jwtSecret string) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		users:     users,
		taskSvc:   taskSvc,
		validate:  validator.New(),
		botToken:  botToken,
		jwtSecret: []byte(jwtSecret),
	}

	s.app.Post("/api/auth", s.handleAuth)

	api := s.app.Group("/api", s.requireAuth)
	api.Get("/tasks", s.handleListTasks)
	api.Post("/tasks", s.handleCreateTask)
	api.Patch("/tasks/:id", s.handleUpdateTask)
	api.Post("/tasks/:id/complete", s.handleCompleteTask)
	api.Post("/tasks/:id/uncomplete", s.handleUncompleteTask)
	api.Delete("/tasks/:id", s.handleDeleteTask)
	api.Get("/settings", s.handleGetSettings)
	api.Patch("/settings", s.handleUpdateSettings)

	return s
}

// App exposes the underlying fiber app, mainly for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen(addr string) error {
	log.Printf("[info] mini app api listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// issueToken signs a session token for the user.
func (s *Server) issueToken(user *model.User, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// requireAuth parses the Bearer token, loads the user and stores it in the
// request context.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
	}

	token, err := jwt.ParseWithClaims(header[len(prefix):], &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token claims"})
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token subject"})
	}

	user, err := s.users.FindByID(c.Context(), uint(userID))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "user not found"})
	}

	c.Locals("user", user)
	return c.Next()
}

func currentUser(c *fiber.Ctx) *model.User {
	user, _ := c.Locals("user").(*model.User)
	return user
}
