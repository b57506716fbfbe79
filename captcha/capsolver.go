package captcha

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/h2non/gentleman.v2"
	"gopkg.in/h2non/gentleman.v2/plugins/body"
)

// CAPSOLVER_ENDPOINT is the production API base URL.
const CAPSOLVER_ENDPOINT = "https://api.capsolver.com"

const capsolverPollInterval = 3 * time.Second

// CapsolverClient talks to the Capsolver task API: create a task, poll for
// its result. Requests carry their own HTTP timeout, polling stops with the
// caller's context while an abandoned task keeps running on the service
// side.
type CapsolverClient struct {
	key  string
	cli  *gentleman.Client
	poll time.Duration
	log  *zap.Logger
}

func NewCapsolverClient(key string, log *zap.Logger) *CapsolverClient {
	if log == nil {
		log = zap.NewNop()
	}
	cli := gentleman.New().URL(CAPSOLVER_ENDPOINT)
	cli.Context.Client.Timeout = 30 * time.Second
	return &CapsolverClient{
		key:  key,
		cli:  cli,
		poll: capsolverPollInterval,
		log:  log,
	}
}

// SetEndpoint points the client at another API base URL.
func (c *CapsolverClient) SetEndpoint(url string) *CapsolverClient {
	c.cli.URL(url)
	return c
}

// SetPollInterval overrides how often a pending task is re-checked.
func (c *CapsolverClient) SetPollInterval(d time.Duration) *CapsolverClient {
	if d > 0 {
		c.poll = d
	}
	return c
}

// HasKey reports whether the client holds an API credential.
func (c *CapsolverClient) HasKey() bool { return c.key != "" }

type capsolverResponse struct {
	ErrorID          int      `json:"errorId"`
	ErrorCode        string   `json:"errorCode"`
	ErrorDescription string   `json:"errorDescription"`
	TaskID           string   `json:"taskId"`
	Status           string   `json:"status"`
	Solution         Solution `json:"solution"`
	Balance          float64  `json:"balance"`
}

func (c *CapsolverClient) call(path string, payload map[string]any) (*capsolverResponse, error) {
	res, err := c.cli.Request().Method("POST").Path(path).Use(body.JSON(payload)).Send()
	if err != nil {
		return nil, err
	}
	if !res.Ok {
		return nil, fmt.Errorf("capsolver: http status %d", res.StatusCode)
	}
	out := new(capsolverResponse)
	if err := res.JSON(out); err != nil {
		return nil, err
	}
	if out.ErrorID != 0 {
		err := fmt.Errorf("capsolver: %s: %s", out.ErrorCode, out.ErrorDescription)
		if permanentAPIError(out.ErrorCode) {
			return nil, Permanent(err)
		}
		return nil, err
	}
	return out, nil
}

// permanentAPIError separates API errors no retry can fix from transient
// service hiccups.
func permanentAPIError(code string) bool {
	switch code {
	case "ERROR_INVALID_APIKEY",
		"ERROR_KEY_DENIED_ACCESS",
		"ERROR_ZERO_BALANCE",
		"ERROR_TASK_NOT_SUPPORTED",
		"ERROR_INVALID_TASK_DATA":
		return true
	}
	return false
}

// CreateTask submits a solving task and returns its id.
func (c *CapsolverClient) CreateTask(task map[string]any) (string, error) {
	res, err := c.call("/createTask", map[string]any{"clientKey": c.key, "task": task})
	if err != nil {
		return "", err
	}
	if res.TaskID == "" {
		return "", errors.New("capsolver: empty task id")
	}
	return res.TaskID, nil
}

// TaskResult fetches the state of a task. ready is false while the service
// is still working on it.
func (c *CapsolverClient) TaskResult(taskID string) (Solution, bool, error) {
	res, err := c.call("/getTaskResult", map[string]any{"clientKey": c.key, "taskId": taskID})
	if err != nil {
		return nil, false, err
	}
	return res.Solution, res.Status == "ready", nil
}

// Balance returns the remaining account credit.
func (c *CapsolverClient) Balance() (float64, error) {
	res, err := c.call("/getBalance", map[string]any{"clientKey": c.key})
	if err != nil {
		return 0, err
	}
	return res.Balance, nil
}

// Solve runs the full create-and-poll flow. It returns ctx.Err when the
// context expires first, the remote task is then left to finish on its own.
func (c *CapsolverClient) Solve(ctx context.Context, task map[string]any) (Solution, error) {
	if c.key == "" {
		return nil, Permanent(ErrMissingCredential)
	}
	taskID, err := c.CreateTask(task)
	if err != nil {
		return nil, err
	}
	c.log.Debug("capsolver task created",
		zap.String("task_id", taskID),
		zap.Any("type", task["type"]))
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.poll):
		}
		sol, ready, err := c.TaskResult(taskID)
		if err != nil {
			return nil, err
		}
		if ready {
			return sol, nil
		}
	}
}

// Solution is the raw solution object of a finished task. Getters pick the
// fields the different task families use.
type Solution map[string]any

func (s Solution) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := s[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Token returns the challenge response token.
func (s Solution) Token() string {
	return s.str("token", "gRecaptchaResponse", "captcha_response")
}

// Text returns the recognized text of an image task.
func (s Solution) Text() string { return s.str("text") }

// Cookies returns clearance cookies of anti-bot tasks.
func (s Solution) Cookies() map[string]string {
	out := map[string]string{}
	raw, ok := s["cookies"].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		if sv, ok := v.(string); ok {
			out[k] = sv
		}
	}
	return out
}

// GeeTest returns the three GeeTest validation values.
func (s Solution) GeeTest() (challenge, validate, seccode string) {
	return s.str("challenge"), s.str("validate"), s.str("seccode")
}
