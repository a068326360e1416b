package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves the OpenAPI document at /swagger/doc.json and a
// browser page for it at /swagger/index.html.
func RegisterSwagger(r *gin.Engine) {
	r.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})
	r.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>arkz API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "arkz content workflow", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "error": {"type":"string"}, "code": {"type":"string","enum":["UNAUTHENTICATED","INVALID_ARGUMENT","PERMISSION_DENIED","NOT_FOUND","SCORING_FAILED","UPLOAD_FAILED","INTERNAL"]} } },
      "Attachment": { "type": "object", "properties": { "name": {"type":"string"}, "url": {"type":"string"}, "type": {"type":"string"}, "objectPath": {"type":"string"} } },
      "Draft": { "type": "object", "properties": {
        "id": {"type":"string","format":"uuid"}, "organizationId": {"type":"string"}, "title": {"type":"string"}, "content": {"type":"string"},
        "status": {"type":"string","enum":["Draft","In Review","Approved","Rejected"]}, "author": {"type":"string"}, "authorId": {"type":"string"},
        "createdAt": {"type":"string","format":"date-time"}, "updatedAt": {"type":"string","format":"date-time"},
        "attachments": {"type":"array","items":{"$ref":"#/components/schemas/Attachment"}},
        "alignmentScore": {"type":"number"}, "feedback": {"type":"string"}, "suggestions": {"type":"array","items":{"type":"string"}},
        "rationale": {"type":"string"}, "justification": {"type":"string"} } },
      "SignedURL": { "type": "object", "properties": { "url": {"type":"string"}, "objectPath": {"type":"string"}, "bucket": {"type":"string"}, "expiresAt": {"type":"string","format":"date-time"}, "contentType": {"type":"string"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/auth/login": { "post": { "summary": "Keycloak password or authorization-code grant", "security": [], "responses": { "200": { "description": "token pair" }, "401": { "description": "authentication failed" } } } },
    "/auth/token": { "post": { "summary": "Exchange a provider ID token", "security": [], "responses": { "200": { "description": "token pair" }, "401": { "description": "invalid id token" } } } },
    "/auth/refresh": { "post": { "summary": "Rotate a refresh token", "security": [], "responses": { "200": { "description": "token pair" }, "401": { "description": "invalid refresh" } } } },
    "/auth/logout": { "post": { "summary": "Delete the refresh session (or every session with all=true) and revoke the access token", "responses": { "200": { "description": "logged out" } } } },
    "/api/setup": { "post": { "summary": "Create the organization and the caller's profile", "responses": { "201": { "description": "user and organization" } } } },
    "/api/users/me": { "get": { "summary": "Caller profile", "responses": { "200": { "description": "user" }, "404": { "description": "not set up" } } } },
    "/api/users/me/role": { "put": { "summary": "Switch the caller's role", "responses": { "200": { "description": "user" } } } },
    "/api/orgs/{orgId}/users/{userId}/role": { "put": { "summary": "Admin role change", "responses": { "200": { "description": "user" } } } },
    "/api/orgs/{orgId}/drafts": { "get": { "summary": "List drafts, optional ?status=", "responses": { "200": { "description": "drafts" } } } },
    "/api/orgs/{orgId}/drafts/stats": { "get": { "summary": "Counts per status and mean alignment", "responses": { "200": { "description": "stats" } } } },
    "/api/orgs/{orgId}/drafts/{id}": {
      "get": { "summary": "Get a draft", "responses": { "200": { "description": "draft", "content": { "application/json": { "schema": { "$ref": "#/components/schemas/Draft" } } } } } },
      "put": { "summary": "Save (merge) a draft, ?async=true acknowledges with 202", "responses": { "200": { "description": "draft" }, "202": { "description": "accepted" } } }
    },
    "/api/orgs/{orgId}/drafts/{id}/submit": { "post": { "summary": "Draft to In Review", "responses": { "200": { "description": "draft" }, "403": { "description": "not permitted" } } } },
    "/api/orgs/{orgId}/drafts/{id}/approve": { "post": { "summary": "In Review to Approved", "responses": { "200": { "description": "draft" } } } },
    "/api/orgs/{orgId}/drafts/{id}/reject": { "post": { "summary": "In Review to Rejected with feedback", "responses": { "200": { "description": "draft" } } } },
    "/api/orgs/{orgId}/drafts/{id}/score": { "post": { "summary": "Score against the blueprint, ?async=true", "responses": { "200": { "description": "draft" }, "502": { "description": "scoring failed" } } } },
    "/api/orgs/{orgId}/drafts/{id}/suggestions": { "post": { "summary": "Improvement suggestions", "responses": { "200": { "description": "suggestions" } } } },
    "/api/orgs/{orgId}/score": { "post": { "summary": "Score raw content", "responses": { "200": { "description": "score" } } } },
    "/api/orgs/{orgId}/uploads/signed-url": { "post": { "summary": "Issue a content-type bound upload URL", "responses": { "200": { "description": "signed url", "content": { "application/json": { "schema": { "$ref": "#/components/schemas/SignedURL" } } } } } } },
    "/api/orgs/{orgId}/drafts/{id}/attachments": {
      "post": { "summary": "Register a transferred object", "responses": { "200": { "description": "draft" }, "422": { "description": "upload failed" } } },
      "delete": { "summary": "Remove an attachment by ?url=", "responses": { "200": { "description": "draft" } } }
    },
    "/api/orgs/{orgId}/drafts/{id}/attachments/download": { "get": { "summary": "Redirect to a short-lived read URL", "responses": { "302": { "description": "redirect" } } } },
    "/api/orgs/{orgId}/blueprint": {
      "get": { "summary": "Strategic blueprint", "responses": { "200": { "description": "blueprint" } } },
      "put": { "summary": "Merge-update the blueprint", "responses": { "200": { "description": "blueprint" } } }
    },
    "/api/orgs/{orgId}/blueprint/extract": { "post": { "summary": "Extract blueprint fields from a document", "responses": { "200": { "description": "blueprint" } } } },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
