package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ideagraph-backend/internal/interfaces/http/rest"

	"github.com/aws/aws-lambda-go/events"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get(rest.UserIDHeader)))
	})
}

func gatewayRequest(path string, headers map[string]string, authorizer map[string]interface{}) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{
		RawPath: path,
		Headers: headers,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			DomainName: "api.example.com",
			HTTP:       events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: http.MethodGet, Path: path},
		},
	}
	if authorizer != nil {
		req.RequestContext.Authorizer = &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{Lambda: authorizer}
	}
	return req
}

func TestAuthorizerIdentity(t *testing.T) {
	proxy := chiadapter.NewV2(newRouter(echoUser(), zap.NewNop()))

	tests := []struct {
		name       string
		path       string
		headers    map[string]string
		authorizer map[string]interface{}
		status     int
		user       string
	}{
		{
			name:       "sub sets the user",
			path:       "/api/v1/ideas",
			authorizer: map[string]interface{}{"sub": "alice"},
			status:     http.StatusOK,
			user:       "alice",
		},
		{
			name:       "client header is replaced by sub",
			path:       "/api/v1/ideas",
			headers:    map[string]string{rest.UserIDHeader: "victim"},
			authorizer: map[string]interface{}{"sub": "attacker"},
			status:     http.StatusOK,
			user:       "attacker",
		},
		{
			name:    "header without authorizer is rejected",
			path:    "/api/v1/ideas",
			headers: map[string]string{rest.UserIDHeader: "victim"},
			status:  http.StatusUnauthorized,
		},
		{
			name:       "empty sub is rejected",
			path:       "/api/v1/ideas",
			headers:    map[string]string{rest.UserIDHeader: "victim"},
			authorizer: map[string]interface{}{"sub": ""},
			status:     http.StatusUnauthorized,
		},
		{
			name:       "non-string sub is rejected",
			path:       "/api/v1/ideas",
			authorizer: map[string]interface{}{"sub": 42},
			status:     http.StatusUnauthorized,
		},
		{
			name:   "health is public",
			path:   "/health",
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := proxy.ProxyWithContextV2(context.Background(), gatewayRequest(tt.path, tt.headers, tt.authorizer))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.user, resp.Body)
			}
		})
	}
}

func TestAuthorizerIdentityWithoutProxyContext(t *testing.T) {
	router := newRouter(echoUser(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ideas", nil)
	req.Header.Set(rest.UserIDHeader, "victim")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "victim")
}
