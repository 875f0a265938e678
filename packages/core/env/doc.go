// Package env reads the process environment and .env files.
//
// It provides functionality for:
//   - Parsing .env files
//   - Layered variable lookup (process environment over .env values)
//   - Reading the direct-login configuration (LOGIN_URL, LOGIN_USERNAME, LOGIN_PASSWORD)
package env
