package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// taskName maps the monitor CLI's spec-facing service names onto the
// actual supervisor task names (§4.7 collapses what the original ran as
// separate OS processes into in-process tasks; see DESIGN.md). "heartbeat"
// has no dedicated task — it reports the process's own /health check.
var taskName = map[string]string{
	"core":       "ingress",
	"api":        "ingress",
	"webhooks":   "notifier",
	"lootboards": "lootboard",
	"hof":        "hall_of_fame",
	"updater":    "player_refresh",
}

type taskStatus struct {
	Name     string `json:"name"`
	Running  bool   `json:"running"`
	Healthy  bool   `json:"healthy"`
	Failures int    `json:"consecutive_failures"`
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("server responded %d: %s", e.status, e.body)
}

type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

// list returns one row per spec-facing service name (§6), not per
// supervisor task — several service names (core, api) share the same
// underlying ingress task, and heartbeat has no task at all.
func (c *client) list() ([]taskStatus, error) {
	var tasks []taskStatus
	if err := c.getJSON("/admin/tasks", &tasks); err != nil {
		return nil, err
	}
	byTask := make(map[string]taskStatus, len(tasks))
	for _, t := range tasks {
		byTask[t.Name] = t
	}

	out := make([]taskStatus, 0, len(services))
	for _, svc := range services {
		if svc == "heartbeat" {
			st, err := c.heartbeatStatus()
			if err != nil {
				st = taskStatus{Name: "heartbeat"}
			}
			out = append(out, st)
			continue
		}
		t := byTask[taskName[svc]]
		out = append(out, taskStatus{Name: svc, Running: t.Running, Healthy: t.Healthy, Failures: t.Failures})
	}
	return out, nil
}

func (c *client) status(service string) (taskStatus, error) {
	if service == "heartbeat" {
		return c.heartbeatStatus()
	}
	task := taskName[service]
	var out taskStatus
	if err := c.getJSON("/admin/tasks/"+task, &out); err != nil {
		return taskStatus{}, err
	}
	out.Name = service
	return out, nil
}

func (c *client) heartbeatStatus() (taskStatus, error) {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return taskStatus{}, err
	}
	defer resp.Body.Close()
	healthy := resp.StatusCode == http.StatusOK
	return taskStatus{Name: "heartbeat", Running: true, Healthy: healthy}, nil
}

func (c *client) start(service string) error   { return c.taskOp(service, "start") }
func (c *client) stop(service string) error    { return c.taskOp(service, "stop") }
func (c *client) restart(service string) error { return c.taskOp(service, "restart") }

func (c *client) taskOp(service, op string) error {
	if service == "heartbeat" {
		return fmt.Errorf("heartbeat is the supervisor's own watchdog; it cannot be started/stopped independently")
	}
	task := taskName[service]
	resp, err := c.http.Post(fmt.Sprintf("%s/admin/tasks/%s/%s", c.baseURL, task, op), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusErr(resp)
}

func (c *client) logs(service string, n int) ([]string, error) {
	if service == "heartbeat" {
		return nil, nil
	}
	task := taskName[service]
	var out struct {
		Lines []string `json:"lines"`
	}
	if err := c.getJSON(fmt.Sprintf("/admin/tasks/%s/logs?n=%d", task, n), &out); err != nil {
		return nil, err
	}
	return out.Lines, nil
}

func (c *client) getJSON(path string, dst any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusErr(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func statusErr(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var body struct {
		Error string `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	return &httpStatusError{status: resp.StatusCode, body: body.Error}
}
