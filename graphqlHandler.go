package main

import (
	"context"
	"time"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/buildhub/datasync_backend/config"
	"github.com/buildhub/datasync_backend/directives"
	"github.com/buildhub/datasync_backend/graph"
	"github.com/gin-gonic/gin"
	"github.com/ravilushqa/otelgqlgen"
	"github.com/redis/go-redis/v9"
)

const apqPrefix = "apq:"

// apqCache stores persisted query text in Redis. The client is looked up per
// call so queries work unpersisted until Redis connects.
type apqCache struct {
	client func() *redis.Client
	ttl    time.Duration
}

func (c *apqCache) Add(ctx context.Context, key string, value interface{}) {
	client := c.client()
	if client == nil {
		return
	}
	client.Set(ctx, apqPrefix+key, value, c.ttl)
}

func (c *apqCache) Get(ctx context.Context, key string) (interface{}, bool) {
	client := c.client()
	if client == nil {
		return struct{}{}, false
	}
	s, err := client.Get(ctx, apqPrefix+key).Result()
	if err != nil {
		return struct{}{}, false
	}
	return s, true
}

func (s *server) resolver() *graph.Resolver {
	return &graph.Resolver{
		DB:      config.GetDB,
		Logger:  s.logger,
		Options: s.opts,
	}
}

func (s *server) graphqlHandler() gin.HandlerFunc {
	c := graph.Config{Resolvers: s.resolver()}
	c.Directives.HasRole = directives.HasRole

	h := handler.New(graph.NewExecutableSchema(c))
	h.AddTransport(transport.POST{})
	h.Use(otelgqlgen.Middleware())
	h.Use(extension.AutomaticPersistedQuery{Cache: &apqCache{client: config.GetRedisDB, ttl: 24 * time.Hour}})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
