package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const swaggerUIHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width,initial-scale=1" />
    <title>Life+ API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
    <style>
      body { margin: 0; background: #f8fafc; }
      #swagger-ui { max-width: 1200px; margin: 0 auto; }
    </style>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: "/docs/openapi.yaml",
        dom_id: "#swagger-ui",
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis],
        layout: "BaseLayout"
      });
    </script>
  </body>
</html>`

type DocsHandler struct {
	doc []byte
}

// NewDocsHandler serves the Swagger UI page and the OpenAPI document it
// loads.
func NewDocsHandler(doc []byte) *DocsHandler {
	return &DocsHandler{doc: doc}
}

func (h *DocsHandler) UI(ctx *gin.Context) {
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerUIHTML))
}

func (h *DocsHandler) OpenAPI(ctx *gin.Context) {
	if len(h.doc) == 0 {
		RespondNotFound(ctx, "API document not available")
		return
	}
	ctx.Data(http.StatusOK, "application/yaml; charset=utf-8", h.doc)
}
