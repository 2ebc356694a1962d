package main

// General API documentation for swaggo. Regenerate internal/httpapi/docs with
// `swag init -g cmd/localchat/docs.go -o internal/httpapi/docs`.
//
// @title           localchat API
// @version         1.0
// @description     HTTP API for chatting with a local GGUF model.
//
// @contact.name   localchat maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
