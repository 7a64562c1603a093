package api

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/stream"
)

const serviceName = "users-api"

var userNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://flowkit.dev/demo/users"))

// ApiUser is a user as returned by the remote service.
type ApiUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// Config controls the simulated service.
type Config struct {
	// Latency is the delay before every response.
	Latency time.Duration `yaml:"latency" mapstructure:"latency"`
	// FailRequests makes every user request fail.
	FailRequests bool `yaml:"fail_requests" mapstructure:"fail_requests"`
	// PageSize is the number of users per page.
	PageSize int `yaml:"page_size" mapstructure:"page_size" validate:"gte=0"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.PageSize == 0 {
		c.PageSize = 5
	}
}

// Client is the simulated remote service.
type Client struct {
	cfg      Config
	requests atomic.Int64
	log      *logger.Logger
}

// New creates a client from cfg.
func New(cfg Config) *Client {
	cfg.ApplyDefaults()
	return &Client{cfg: cfg, log: logger.Get("demo.api")}
}

// Requests returns the number of responses produced so far.
func (c *Client) Requests() int64 { return c.requests.Load() }

// GetUsers returns the first page of users.
func (c *Client) GetUsers() *stream.Source[[]ApiUser] {
	return c.page("get-users", 0)
}

// GetMoreUsers returns the second page of users.
func (c *Client) GetMoreUsers() *stream.Source[[]ApiUser] {
	return c.page("get-more-users", 1)
}

// GetUsersWithError always fails after the configured latency.
func (c *Client) GetUsersWithError() *stream.Source[[]ApiUser] {
	return stream.New(func(ctx context.Context, emit stream.Emit[[]ApiUser]) error {
		if err := c.respond(ctx, "get-users-with-error"); err != nil {
			return err
		}
		return apperrors.ExternalServiceError(serviceName, fmt.Errorf("simulated failure"))
	}).Named("get-users-with-error")
}

func (c *Client) page(name string, index int) *stream.Source[[]ApiUser] {
	return stream.New(func(ctx context.Context, emit stream.Emit[[]ApiUser]) error {
		if err := c.respond(ctx, name); err != nil {
			return err
		}
		if c.cfg.FailRequests {
			return apperrors.ExternalServiceError(serviceName, fmt.Errorf("%s: request rejected", name))
		}
		return emit(Users(index*c.cfg.PageSize, c.cfg.PageSize))
	}).Named(name)
}

func (c *Client) respond(ctx context.Context, name string) error {
	if err := stream.Delay(ctx, c.cfg.Latency); err != nil {
		return err
	}
	n := c.requests.Add(1)
	c.log.Debug("Request served", logger.Fields(
		logger.FieldOperation, name,
		"request", n,
	))
	return nil
}

// GetNumbers emits 1 through 6, waiting the configured latency before the
// first value and interval between values.
func (c *Client) GetNumbers(interval time.Duration) *stream.Source[int] {
	return ticking(c, "get-numbers", interval, []int{1, 2, 3, 4, 5, 6})
}

// GetAlphabets emits "A" through "H" with the same timing as GetNumbers.
func (c *Client) GetAlphabets(interval time.Duration) *stream.Source[string] {
	return ticking(c, "get-alphabets", interval, []string{"A", "B", "C", "D", "E", "F", "G", "H"})
}

func ticking[T any](c *Client, name string, interval time.Duration, values []T) *stream.Source[T] {
	return stream.New(func(ctx context.Context, emit stream.Emit[T]) error {
		if err := c.respond(ctx, name); err != nil {
			return err
		}
		for i, v := range values {
			if i > 0 {
				if err := stream.Delay(ctx, interval); err != nil {
					return err
				}
			}
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	}).Named(name)
}

// Users builds n users starting at offset. The same position always yields
// the same user.
func Users(offset, n int) []ApiUser {
	users := make([]ApiUser, 0, n)
	for i := offset + 1; i <= offset+n; i++ {
		users = append(users, ApiUser{
			ID:     uuid.NewSHA1(userNamespace, fmt.Appendf(nil, "user-%d", i)).String(),
			Name:   fmt.Sprintf("User %d", i),
			Email:  fmt.Sprintf("user%d@example.com", i),
			Avatar: fmt.Sprintf("https://avatars.example.com/%d.png", i),
		})
	}
	return users
}
