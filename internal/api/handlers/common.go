// Package handlers provides HTTP request handlers.
package handlers

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roea-ai/botmind/internal/command"
	"github.com/roea-ai/botmind/internal/core/agent"
	"github.com/roea-ai/botmind/internal/core/approval"
	"github.com/roea-ai/botmind/internal/core/dispatch"
	"github.com/roea-ai/botmind/internal/core/task"
)

// PrincipalKey is the gin context key holding the authenticated principal.
const PrincipalKey = "principal"

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	commandSchema = mustSchema("command.schema.json")
	jobSchema     = mustSchema("job.schema.json")
	subtaskSchema = mustSchema("subtask.schema.json")
	botSchema     = mustSchema("bot.schema.json")
)

func mustSchema(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("missing schema %s: %v", name, err))
	}
	return jsonschema.MustCompileString("schemas/"+name, string(data))
}

// Principal returns the principal set by the auth middleware.
func Principal(c *gin.Context) string {
	return c.GetString(PrincipalKey)
}

// requirePrincipal writes 401 and returns false when the request carries no
// principal.
func requirePrincipal(c *gin.Context) (string, bool) {
	p := Principal(c)
	if p == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "principal required"})
		return "", false
	}
	return p, true
}

// bindValidated checks the request body against schema before decoding it
// into dst.
func bindValidated(c *gin.Context, schema *jsonschema.Schema, dst any) bool {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return false
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return false
	}
	if err := schema.Validate(doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// respondError maps domain errors to status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, agent.ErrUnauthorized), errors.Is(err, approval.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, agent.ErrBotNotFound),
		errors.Is(err, dispatch.ErrJobNotFound),
		errors.Is(err, dispatch.ErrSubtaskNotFound),
		errors.Is(err, dispatch.ErrWorldNotFound),
		errors.Is(err, approval.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, agent.ErrBotExists),
		errors.Is(err, dispatch.ErrJobClosed),
		errors.Is(err, approval.ErrResolved),
		errors.Is(err, task.ErrDuplicateTask):
		status = http.StatusConflict
	case errors.Is(err, dispatch.ErrInvalidSubtask),
		errors.Is(err, command.ErrEmpty),
		errors.Is(err, command.ErrUnknownKind):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
