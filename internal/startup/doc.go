// Package startup handles configuration loading and structured startup
// logging. Configuration comes from environment variables, optionally
// seeded from a .env file in the working directory.
package startup
