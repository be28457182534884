package main

// General API documentation for swaggo. Build with -tags=swagger to serve it.
//
// @title           mnsd admin API
// @version         1.0
// @description     Admin API of the MAP message notification service: instance registration,
// @description     acceptor status and websocket event streams.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
