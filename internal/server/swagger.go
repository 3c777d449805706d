package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title QSSAGE API
// @version 0.1
// @description QR-code URL phishing scanner: scan, report and dispatch endpoints.
// @contact.name QSSAGE Maintainers
// @BasePath /

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/raysh454/qssage/docs/swagger" // registers the OpenAPI document
)

func swaggerHandler() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json"))
}
