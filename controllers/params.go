package controllers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/carecircle/config"
	"github.com/cppla/carecircle/middleware"
	"github.com/cppla/carecircle/services"
)

// query collects parse failures so a handler can report the first bad parameter.
type query struct {
	ctx *gin.Context
	err error
}

func newQuery(ctx *gin.Context) *query { return &query{ctx: ctx} }

func (q *query) fail(key, raw string) {
	if q.err == nil {
		q.err = fmt.Errorf("invalid %s %q", key, raw)
	}
}

func (q *query) str(key string) string {
	return strings.TrimSpace(q.ctx.Query(key))
}

func (q *query) integer(key string) int {
	raw := q.str(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(key, raw)
	}
	return v
}

func (q *query) id(key string) uint {
	raw := q.str(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		q.fail(key, raw)
	}
	return uint(v)
}

func (q *query) idPtr(key string) *uint {
	if q.str(key) == "" {
		return nil
	}
	v := q.id(key)
	return &v
}

func (q *query) flag(key string) bool {
	v := q.flagPtr(key)
	return v != nil && *v
}

func (q *query) flagPtr(key string) *bool {
	raw := q.str(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(key, raw)
		return nil
	}
	return &v
}

func (q *query) timestamp(key string) *time.Time {
	raw := q.str(key)
	if raw == "" {
		return nil
	}
	v, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		q.fail(key, raw)
		return nil
	}
	return &v
}

func (q *query) list(key string) []string {
	raw := q.str(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// pathID parses a positive numeric path parameter.
func pathID(ctx *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || v == 0 {
		badRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

// actorFrom builds the caller identity. Moderator rights come from the role in the token.
func actorFrom(ctx *gin.Context, cfg config.AppConfig) (services.Actor, bool) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		return services.Actor{}, false
	}
	return services.Actor{UserID: userID, Moderator: cfg.IsModerator(middleware.CurrentRole(ctx))}, true
}

// viewer returns the optional caller id and whether they moderate.
func viewer(ctx *gin.Context, cfg config.AppConfig) (uint, bool) {
	actor, _ := actorFrom(ctx, cfg)
	return actor.UserID, actor.Moderator
}
