package handler

import (
	"log/slog"
	"net/http"
)

// DocsHandler serves the OpenAPI document and a Swagger UI page that reads it.
type DocsHandler struct {
	doc []byte
}

func NewDocsHandler(doc []byte) *DocsHandler {
	return &DocsHandler{doc: doc}
}

func (h *DocsHandler) Document(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	if _, err := w.Write(h.doc); err != nil {
		slog.Error("failed to write openapi document", "error", err)
	}
}

func (h *DocsHandler) UI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(swaggerHTML)); err != nil {
		slog.Error("failed to write docs page", "error", err)
	}
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Royalty Ledger API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: "/docs/openapi.yaml", dom_id: "#swagger-ui"});
  </script>
</body>
</html>`
