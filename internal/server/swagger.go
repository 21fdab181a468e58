package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title Secboard API
// @version 0.1
// @description Dashboard API for starting domain security scans and reading their results.
// @contact.name Secboard Maintainers
// @contact.url https://github.com/raysh454/secboard
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
