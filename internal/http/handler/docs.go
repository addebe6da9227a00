package handler

import "github.com/gofiber/fiber/v2"

const docsHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Card API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`

// OpenAPISpec serves the OpenAPI document at path.
func OpenAPISpec(path string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile(path)
	}
}

// DocsUI serves a Swagger UI page that loads /openapi.yaml.
func DocsUI() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Type("html").SendString(docsHTML)
	}
}
