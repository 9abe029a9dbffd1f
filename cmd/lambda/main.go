package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"ideagraph-backend/internal/di"
	"ideagraph-backend/internal/interfaces/http/rest"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container
)

// coldStart builds the container once per execution environment.
func coldStart() {
	coldStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	// The container lives for the life of the execution environment, so its
	// cleanup is never run.
	container, _, err = di.InitializeContainer(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Sessions outlive a single invocation; sweep in the background while the
	// environment is warm.
	container.StartBackground(context.Background())

	chiLambda = chiadapter.NewV2(newRouter(container.Router, container.Logger))

	container.Logger.Info("Lambda cold start completed", zap.Duration("duration", time.Since(coldStartTime)))
}

func newRouter(app http.Handler, logger *zap.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(authorizerIdentity(logger))
	router.Mount("/", app)
	return router
}

// authorizerIdentity sets the user id header of API requests from the API
// Gateway authorizer's sub claim, replacing whatever the client sent.
// Requests without a sub are rejected. Health, readiness and metrics paths
// are not behind the authorizer.
func authorizerIdentity(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			proxyCtx, ok := core.GetAPIGatewayV2ContextFromContext(r.Context())
			if !ok {
				logger.Error("Could not get proxy request context from context")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			var sub string
			if proxyCtx.Authorizer != nil {
				sub, _ = proxyCtx.Authorizer.Lambda["sub"].(string)
			}
			if sub == "" {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			r.Header.Set(rest.UserIDHeader, sub)
			next.ServeHTTP(w, r)
		})
	}
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	coldStart()
	lambda.Start(Handler)
}
