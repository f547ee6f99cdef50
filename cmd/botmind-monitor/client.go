package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roea-ai/botmind/pkg/types"
)

type client struct {
	baseURL   string
	principal string
	token     string
	http      *http.Client
}

type worldSummary struct {
	Name string `json:"name"`
	Bots int    `json:"bots"`
}

func (c *client) waitHealth(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var out map[string]any
		if err := c.getJSON("/health", &out); err == nil {
			return nil
		}
		time.Sleep(400 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for /health")
}

func (c *client) listWorlds() ([]worldSummary, error) {
	var out []worldSummary
	if err := c.getJSON("/api/v1/worlds", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) listBots(world string) ([]types.BotInfo, error) {
	var out []types.BotInfo
	if err := c.getJSON("/api/v1/worlds/"+url.PathEscape(world)+"/bots", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) listJobs(world string) ([]types.MultiTaskJob, error) {
	var out []types.MultiTaskJob
	if err := c.getJSON("/api/v1/worlds/"+url.PathEscape(world)+"/jobs", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) listEvents(limit int) ([]types.Event, error) {
	var out []types.Event
	if err := c.getJSON(fmt.Sprintf("/api/v1/events?limit=%d", limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// queueCommand sends "bot command..." to the bot's queue.
func (c *client) queueCommand(world, line string) (*types.Task, error) {
	bot, cmd, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok || strings.TrimSpace(cmd) == "" {
		return nil, fmt.Errorf("usage: <bot> <command>")
	}
	var out types.Task
	path := "/api/v1/worlds/" + url.PathEscape(world) + "/bots/" + url.PathEscape(bot) + "/tasks"
	if err := c.postJSON(path, map[string]string{"command": strings.TrimSpace(cmd)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) do(req *http.Request) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.principal != "" {
		req.Header.Set("X-Principal", c.principal)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *client) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	body, err := c.do(req)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *client) postJSON(path string, in any, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
